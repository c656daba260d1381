// Package nearai talks to the NEAR AI private inference cloud: streaming chat
// completions with request/response hashing, and the signature service that
// attests them.
package nearai

import (
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL          = "https://cloud-api.near.ai/v1"
	DefaultModel            = "openai/gpt-oss-120b"
	DefaultTemperature      = 0.3
	DefaultChatTimeout      = 120 * time.Second
	DefaultSignatureTimeout = 30 * time.Second
	signingAlgo             = "ecdsa"
)

// Client implements ports.ChatModel and ports.AttestationService.
type Client struct {
	baseURL          string
	apiKey           string
	model            string
	temperature      float64
	chatTimeout      time.Duration
	signatureTimeout time.Duration
	httpClient       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithModel sets the model used for completions and signature lookups.
func WithModel(m string) Option {
	return func(c *Client) {
		c.model = m
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

// WithTimeouts sets the per-call deadlines. Zero keeps the default.
func WithTimeouts(chat, signature time.Duration) Option {
	return func(c *Client) {
		if chat > 0 {
			c.chatTimeout = chat
		}
		if signature > 0 {
			c.signatureTimeout = signature
		}
	}
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// New creates a client authenticated with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:          DefaultBaseURL,
		apiKey:           apiKey,
		model:            DefaultModel,
		temperature:      DefaultTemperature,
		chatTimeout:      DefaultChatTimeout,
		signatureTimeout: DefaultSignatureTimeout,
		httpClient:       &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
