package ports

import (
	"context"

	"github.com/0x-stone/zspa/pkg/domain"
)

// Persistence is the fundraiser and donation store.
type Persistence interface {
	// GetCause returns domain.ErrCauseNotFound when no fundraiser has the id.
	GetCause(ctx context.Context, id string) (*domain.Cause, error)
	RecordDonation(ctx context.Context, fundraiserID string, amountNative, amountQuote float64) (*domain.Donation, error)
}

// Search ranks active fundraisers, best first.
type Search interface {
	SearchCauses(ctx context.Context, query domain.SearchQuery, interests []string) ([]domain.Cause, error)
}

// ChatMessage is one entry of an inference request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the result of one inference call.
type Completion struct {
	Content string
	// ChatID identifies the call at the attestation service.
	ChatID string
	// RequestHash is the hex SHA-256 of the exact request body sent.
	RequestHash string
	// ResponseHash is the hex SHA-256 of the raw streamed response bytes.
	ResponseHash string
}

// Receipt returns the verification input for the completion.
func (c Completion) Receipt(node string) domain.InferenceReceipt {
	return domain.InferenceReceipt{
		ChatID:       c.ChatID,
		RequestHash:  c.RequestHash,
		ResponseHash: c.ResponseHash,
		OriginNode:   node,
	}
}

// ChatModel performs chat completions against an attested backend.
type ChatModel interface {
	Complete(ctx context.Context, messages []ChatMessage) (Completion, error)
}

// AttestationService publishes signed statements for completed chats.
type AttestationService interface {
	// GetSignature returns domain.ErrAttestationNotFound while the statement is not yet available.
	GetSignature(ctx context.Context, chatID string) (*domain.Attestation, error)
}

// SwapProvider resolves assets, issues quotes and reports settlement.
type SwapProvider interface {
	ListTokens(ctx context.Context) ([]domain.Token, error)
	RequestQuote(ctx context.Context, req domain.QuoteRequest) (*domain.Quote, error)
	GetStatus(ctx context.Context, depositAddress string) (*domain.SwapStatus, error)
}
