package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrVersionConflict is returned when a save races with another writer.
var ErrVersionConflict = errors.New("session version conflict")

// ErrCauseNotFound is returned when a direct cause lookup has no match.
var ErrCauseNotFound = errors.New("cause not found")

// ErrAttestationNotFound is returned while an attestation has not been published yet.
var ErrAttestationNotFound = errors.New("attestation not found")

// StateError reports a broken session record invariant.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return "invalid session state: " + e.Reason
}

// ContractError reports a collaborator record missing a required field.
type ContractError struct {
	Record string
	Field  string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s record is missing required field %q", e.Record, e.Field)
}

// ClassificationError wraps a malformed or unschematized classification output.
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return "intent classification failed: " + e.Err.Error()
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// AssetResolutionError is returned when a token cannot be mapped to a provider asset.
type AssetResolutionError struct {
	Symbol string
	Chain  string
	Err    error
}

func (e *AssetResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not resolve token %s on %s: %v", e.Symbol, e.Chain, e.Err)
	}
	return fmt.Sprintf("could not resolve token %s on %s", e.Symbol, e.Chain)
}

func (e *AssetResolutionError) Unwrap() error { return e.Err }

// QuoteError is returned when the swap provider rejects or fails a quote.
type QuoteError struct {
	Reason string
	Err    error
}

func (e *QuoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("quote generation failed: %s: %v", e.Reason, e.Err)
	}
	return "quote generation failed: " + e.Reason
}

func (e *QuoteError) Unwrap() error { return e.Err }

// InvalidAmountError is returned for non-numeric or non-positive amounts.
type InvalidAmountError struct {
	Amount string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount format: %q", e.Amount)
}

// AttestationFetchError is returned when the signature service cannot be read.
type AttestationFetchError struct {
	ChatID     string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *AttestationFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("signature fetch for %s failed after %d attempt(s): status %d", e.ChatID, e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("signature fetch for %s failed after %d attempt(s): %v", e.ChatID, e.Attempts, e.Err)
}

func (e *AttestationFetchError) Unwrap() error { return e.Err }
