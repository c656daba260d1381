package ports

import (
	"context"

	"github.com/0x-stone/zspa/pkg/domain"
)

// StateStore defines the interface for persisting session state.
type StateStore interface {
	// Save persists the state for a given session ID.
	// The stored version must equal state.Version, otherwise domain.ErrVersionConflict
	// is returned. On success state.Version is incremented in place.
	Save(ctx context.Context, sessionID string, state *domain.State) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.State, error)

	// Delete removes the state for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of stored sessions.
	List(ctx context.Context) ([]string, error)
}
