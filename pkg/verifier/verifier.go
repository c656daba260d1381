// Package verifier proves that an inference reply came from an attested
// backend by checking the published signature over its request/response hashes.
package verifier

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/0x-stone/zspa/internal/logging"
	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/ports"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
	defaultAlgo        = "ecdsa"
)

// Verifier checks inference receipts against their attestations.
type Verifier struct {
	attestations ports.AttestationService
	maxAttempts  int
	backoff      time.Duration
	logger       *slog.Logger
	onResult     func(context.Context, *domain.Proof)
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMaxAttempts sets how many times the attestation is fetched.
func WithMaxAttempts(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay; attempt n waits base * 2^n.
func WithBackoff(base time.Duration) Option {
	return func(v *Verifier) {
		v.backoff = base
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = l
	}
}

// WithHooks reports every proof to hooks.OnVerification.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(v *Verifier) {
		v.onResult = h.OnVerification
	}
}

// New creates a Verifier.
func New(attestations ports.AttestationService, opts ...Option) *Verifier {
	v := &Verifier{
		attestations: attestations,
		maxAttempts:  DefaultMaxAttempts,
		backoff:      DefaultBackoff,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify never fails: problems are reported through the proof's fields.
func (v *Verifier) Verify(ctx context.Context, r domain.InferenceReceipt) domain.Proof {
	proof := domain.Proof{
		Type:         domain.ProofType,
		Node:         r.OriginNode,
		ChatID:       r.ChatID,
		RequestHash:  r.RequestHash,
		ResponseHash: r.ResponseHash,
		SigningAlgo:  defaultAlgo,
	}
	defer func() {
		if v.onResult != nil {
			v.onResult(ctx, &proof)
		}
	}()

	if r.ChatID == "" {
		proof.Error = "missing chat id"
		return proof
	}

	att, err := v.fetch(ctx, r.ChatID)
	if err != nil {
		v.logger.Warn("Attestation unavailable", "chat_id", r.ChatID, "node", r.OriginNode, "err", err)
		proof.Error = err.Error()
		return proof
	}

	proof.SigningAddress = att.SigningAddress
	proof.Signature = att.Signature
	if att.SigningAlgo != "" {
		proof.SigningAlgo = att.SigningAlgo
	}

	expected := r.RequestHash + ":" + r.ResponseHash
	proof.TextMatches = att.Text == expected
	if !proof.TextMatches {
		v.logger.Warn("Attestation hash mismatch",
			"chat_id", r.ChatID,
			"expected", expected,
			"received", att.Text,
		)
	}

	recovered, err := RecoverAddress(att.Text, att.Signature)
	if err != nil {
		v.logger.Warn("Signature verification error", "chat_id", r.ChatID, "err", err)
	} else {
		proof.RecoveredAddress = recovered
		proof.SignatureValid = att.SigningAddress != "" && strings.EqualFold(recovered, att.SigningAddress)
	}

	proof.Verified = proof.TextMatches && proof.SignatureValid
	return proof
}

func (v *Verifier) fetch(ctx context.Context, chatID string) (*domain.Attestation, error) {
	var lastErr error
	for attempt := 0; attempt < v.maxAttempts; attempt++ {
		att, err := v.attestations.GetSignature(ctx, chatID)
		if err == nil {
			return att, nil
		}
		lastErr = err
		if !retryable(ctx, err) || attempt == v.maxAttempts-1 {
			return nil, wrapFetch(chatID, attempt+1, err)
		}

		timer := time.NewTimer(v.backoff * time.Duration(1<<attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, wrapFetch(chatID, attempt+1, ctx.Err())
		case <-timer.C:
		}
	}
	return nil, wrapFetch(chatID, v.maxAttempts, lastErr)
}

// retryable reports whether a fetch failure is transient: a not-yet-published
// attestation or a transport failure. HTTP status failures are terminal.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, domain.ErrAttestationNotFound) {
		return true
	}
	var fetchErr *domain.AttestationFetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
		return false
	}
	return true
}

func wrapFetch(chatID string, attempts int, err error) error {
	var fetchErr *domain.AttestationFetchError
	if errors.As(err, &fetchErr) {
		return &domain.AttestationFetchError{ChatID: chatID, StatusCode: fetchErr.StatusCode, Attempts: attempts, Err: fetchErr.Err}
	}
	return &domain.AttestationFetchError{ChatID: chatID, Attempts: attempts, Err: err}
}
