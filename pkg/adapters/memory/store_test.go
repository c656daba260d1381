package memory_test

import (
	"context"
	"testing"

	"github.com/0x-stone/zspa/pkg/adapters/memory"
	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStateStoreContract(t, store)
}

func TestMemoryStore_SavedCopyIsIsolated(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	st := domain.NewState("s1")
	require.NoError(t, store.Save(ctx, "s1", st))

	st.Messages.Append(domain.Message{Role: domain.RoleUser, Content: "after save"})

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Messages.Len())
}

func TestCatalog_RecordDonation(t *testing.T) {
	ctx := context.Background()
	cat := memory.NewCatalog(domain.Cause{ID: "c1", Title: "Ocean Cleanup", Status: "active", GoalAmount: 100})

	d, err := cat.RecordDonation(ctx, "c1", 6.0, 240)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationConfirmed, d.Status)
	assert.Equal(t, 6.0, d.AmountNative)
	assert.NotEmpty(t, d.ID)

	cause, err := cat.GetCause(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 240.0, cause.AmountRaised)
	assert.Len(t, cat.Donations(), 1)

	_, err = cat.RecordDonation(ctx, "missing", 1, 1)
	assert.ErrorIs(t, err, domain.ErrCauseNotFound)
}

func TestCatalog_SearchCauses(t *testing.T) {
	cat := memory.NewCatalog(
		domain.Cause{ID: "c1", Title: "Ocean Cleanup", Status: "active"},
		domain.Cause{ID: "c2", Title: "Forest Guard", Status: "active"},
	)
	got, err := cat.SearchCauses(context.Background(), domain.SearchQuery{Text: "ocean cleanup"}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].ID)
}
