// Package oneclick is a client for the 1Click cross-chain swap API.
package oneclick

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/0x-stone/zspa/pkg/domain"
)

const (
	DefaultBaseURL       = "https://1click.chaindefuser.com"
	DefaultReferral      = "zec-private-agent"
	DefaultSlippageBps   = 100
	DefaultQuoteDeadline = time.Hour
	DefaultTokensTimeout = 10 * time.Second
	DefaultQuoteTimeout  = 15 * time.Second
	DefaultStatusTimeout = 15 * time.Second
	quoteWaitingTimeMs   = 3000
)

// Client implements ports.SwapProvider.
type Client struct {
	baseURL       string
	referral      string
	slippageBps   int
	deadline      time.Duration
	tokensTimeout time.Duration
	quoteTimeout  time.Duration
	statusTimeout time.Duration
	httpClient    *http.Client
	now           func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithReferral sets the referral tag sent with quotes.
func WithReferral(r string) Option {
	return func(c *Client) { c.referral = r }
}

// WithSlippage sets the slippage tolerance in basis points.
func WithSlippage(bps int) Option {
	return func(c *Client) { c.slippageBps = bps }
}

// WithQuoteDeadline sets how long a quote stays valid.
func WithQuoteDeadline(d time.Duration) Option {
	return func(c *Client) { c.deadline = d }
}

// WithTimeouts sets per-endpoint deadlines. Zero keeps the default.
func WithTimeouts(tokens, quote, status time.Duration) Option {
	return func(c *Client) {
		if tokens > 0 {
			c.tokensTimeout = tokens
		}
		if quote > 0 {
			c.quoteTimeout = quote
		}
		if status > 0 {
			c.statusTimeout = status
		}
	}
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithClock replaces the time source used for deadlines.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		referral:      DefaultReferral,
		slippageBps:   DefaultSlippageBps,
		deadline:      DefaultQuoteDeadline,
		tokensTimeout: DefaultTokensTimeout,
		quoteTimeout:  DefaultQuoteTimeout,
		statusTimeout: DefaultStatusTimeout,
		httpClient:    &http.Client{},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTokens returns the provider's token catalog.
func (c *Client) ListTokens(ctx context.Context) ([]domain.Token, error) {
	var tokens []domain.Token
	if _, err := c.do(ctx, c.tokensTimeout, http.MethodGet, "/v0/tokens", nil, http.StatusOK, &tokens); err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

type quoteRequest struct {
	Dry                bool   `json:"dry"`
	DepositMode        string `json:"depositMode"`
	SwapType           string `json:"swapType"`
	SlippageTolerance  int    `json:"slippageTolerance"`
	OriginAsset        string `json:"originAsset"`
	DepositType        string `json:"depositType"`
	DestinationAsset   string `json:"destinationAsset"`
	Amount             string `json:"amount"`
	RefundTo           string `json:"refundTo"`
	RefundType         string `json:"refundType"`
	Recipient          string `json:"recipient"`
	RecipientType      string `json:"recipientType"`
	Deadline           string `json:"deadline"`
	Referral           string `json:"referral"`
	QuoteWaitingTimeMs int    `json:"quoteWaitingTimeMs"`
}

type quoteResponse struct {
	Quote json.RawMessage `json:"quote"`
}

type quoteBody struct {
	DepositAddress string `json:"depositAddress"`
	DepositMemo    string `json:"depositMemo"`
}

// RequestQuote asks for a live swap quote. Only 201 Created is a success.
func (c *Client) RequestQuote(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error) {
	payload := quoteRequest{
		DepositMode:        "SIMPLE",
		SwapType:           "EXACT_INPUT",
		SlippageTolerance:  c.slippageBps,
		OriginAsset:        req.OriginAsset,
		DepositType:        "ORIGIN_CHAIN",
		DestinationAsset:   req.DestinationAsset,
		Amount:             req.Amount,
		RefundTo:           req.RefundTo,
		RefundType:         "ORIGIN_CHAIN",
		Recipient:          req.Recipient,
		RecipientType:      "DESTINATION_CHAIN",
		Deadline:           c.now().UTC().Add(c.deadline).Format("2006-01-02T15:04:05.000Z"),
		Referral:           c.referral,
		QuoteWaitingTimeMs: quoteWaitingTimeMs,
	}

	var resp quoteResponse
	status, err := c.do(ctx, c.quoteTimeout, http.MethodPost, "/v0/quote", payload, http.StatusCreated, &resp)
	if err != nil {
		if status != 0 {
			return nil, &domain.QuoteError{Reason: fmt.Sprintf("HTTP %d", status), Err: err}
		}
		return nil, &domain.QuoteError{Reason: "request failed", Err: err}
	}

	var body quoteBody
	if len(resp.Quote) > 0 {
		if err := json.Unmarshal(resp.Quote, &body); err != nil {
			return nil, &domain.QuoteError{Reason: "malformed quote", Err: err}
		}
	}
	return &domain.Quote{
		DepositAddress: body.DepositAddress,
		DepositMemo:    body.DepositMemo,
		Raw:            resp.Quote,
	}, nil
}

type statusResponse struct {
	Status      string `json:"status"`
	SwapDetails struct {
		AmountInUSD json.Number `json:"amountInUsd"`
	} `json:"swapDetails"`
}

// GetStatus reports the settlement status of a deposit address.
func (c *Client) GetStatus(ctx context.Context, depositAddress string) (*domain.SwapStatus, error) {
	path := "/v0/status?" + url.Values{"depositAddress": {depositAddress}}.Encode()
	var resp statusResponse
	if _, err := c.do(ctx, c.statusTimeout, http.MethodGet, path, nil, http.StatusOK, &resp); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	out := &domain.SwapStatus{Status: resp.Status}
	if resp.SwapDetails.AmountInUSD != "" {
		if v, err := resp.SwapDetails.AmountInUSD.Float64(); err == nil {
			out.AmountUSD = &v
		}
	}
	return out, nil
}

// do performs one call and decodes the body into out when the status matches.
// The returned status is 0 when no response was received.
func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, in any, want int, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}
