package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x-stone/zspa/pkg/adapters/memory"
	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns)
	require.NoError(t, err)
	audit := mw(underlying)

	ctx := context.Background()
	state := domain.NewState("s1")
	state.Swap.RefundAddress = "t1refund"
	state.Swap.DepositAddress = "t1deposit"
	state.Swap.DepositMemo = ""
	state.Messages.Append(
		domain.Message{ID: "m1", Role: domain.RoleUser, Content: "6 ZEC"},
		domain.Message{ID: "m2", Role: domain.RoleAssistant, Content: `{"quote":{},"deposit_addr":"t1deposit"}`},
	)

	require.NoError(t, audit.Save(ctx, "s1", state))
	assert.EqualValues(t, 1, state.Version)

	// The in-memory state is not modified.
	assert.Equal(t, "t1refund", state.Swap.RefundAddress)
	assert.Contains(t, state.Messages.Snapshot()[1].Content, "deposit_addr")

	stored, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "***", stored.Swap.RefundAddress)
	assert.Empty(t, stored.Swap.DepositMemo, "empty values stay empty")
	assert.Equal(t, "t1deposit", stored.Swap.DepositAddress)

	msgs := stored.Messages.Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, "6 ZEC", msgs[0].Content)
	assert.Equal(t, domain.DepositPlaceholder, msgs[1].Content)
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_OrdersOutermostFirst(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{`^refund_address$`})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	// PII runs first, so the sealed record holds the masked value.
	store := middleware.Chain(underlying, pii, enc)
	state := domain.NewState("s1")
	state.Swap.RefundAddress = "t1refund"
	require.NoError(t, store.Save(context.Background(), "s1", state))

	loaded, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "***", loaded.Swap.RefundAddress)
	assert.EqualValues(t, 1, loaded.Version)
}
