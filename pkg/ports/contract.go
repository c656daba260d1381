package ports

import (
	"context"
	"testing"
	"time"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405.000000")

	t.Run("Save and Load", func(t *testing.T) {
		amount := 6.0
		state := domain.NewState(sessionID)
		state.Intent = domain.IntentOperations
		state.Slots.Amount = &amount
		state.SelectCause(domain.Cause{ID: "c1", Title: "Ocean Cleanup", PreferredToken: "USDC", PreferredChain: "eth"})
		state.Messages.Append(domain.Message{ID: "m1", Role: domain.RoleUser, Content: "1"})

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")
		assert.Equal(t, int64(1), state.Version, "Save should bump the version in place")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, int64(1), loaded.Version)
		assert.Equal(t, domain.IntentOperations, loaded.Intent)
		require.NotNil(t, loaded.Slots.Amount)
		assert.Equal(t, 6.0, *loaded.Slots.Amount)
		require.NotNil(t, loaded.SelectedCause)
		assert.Equal(t, "c1", loaded.SelectedCause.ID)
		assert.Equal(t, state.Messages.Snapshot(), loaded.Messages.Snapshot())
	})

	t.Run("Sequential Saves", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Poll.Retries = 2
		require.NoError(t, store.Save(ctx, sessionID, loaded))
		require.NoError(t, store.Save(ctx, sessionID, loaded))

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, loaded.Version, again.Version)
		assert.Equal(t, 2, again.Poll.Retries)
	})

	t.Run("Stale Save Rejected", func(t *testing.T) {
		a, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		b, err := store.Load(ctx, sessionID)
		require.NoError(t, err)

		require.NoError(t, store.Save(ctx, sessionID, a))
		err = store.Save(ctx, sessionID, b)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)
	})

	t.Run("Loaded State Is Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Messages.Append(domain.Message{ID: "m2", Role: domain.RoleUser, Content: "not saved"})

		fresh, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, loaded.Messages.Len()-1, fresh.Messages.Len())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		// A deleted session starts over at version zero.
		require.NoError(t, store.Save(ctx, sessionID, domain.NewState(sessionID)))
		require.NoError(t, store.Delete(ctx, sessionID))
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewState(id1)))
		require.NoError(t, store.Save(ctx, id2, domain.NewState(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
