package oneclick_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x-stone/zspa/pkg/adapters/oneclick"
	"github.com/0x-stone/zspa/pkg/domain"
)

func TestListTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/tokens", r.URL.Path)
		_, _ = w.Write([]byte(`[{"symbol":"ZEC","blockchain":"zec","assetId":"nep141:zec","decimals":8,"price":31.2}]`))
	}))
	defer srv.Close()

	tokens, err := oneclick.New(oneclick.WithBaseURL(srv.URL)).ListTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Token{{Symbol: "ZEC", Chain: "zec", AssetID: "nep141:zec", Decimals: 8, Price: 31.2}}, tokens)
}

func TestRequestQuote(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var sent map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v0/quote", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"quote":{"depositAddress":"t1dep","depositMemo":"m","amountOut":"99"}}`))
	}))
	defer srv.Close()

	c := oneclick.New(oneclick.WithBaseURL(srv.URL), oneclick.WithClock(func() time.Time { return now }))
	q, err := c.RequestQuote(context.Background(), domain.QuoteRequest{
		OriginAsset: "a", DestinationAsset: "b", Amount: "600000000", RefundTo: "zs1", Recipient: "0xr",
	})
	require.NoError(t, err)
	assert.Equal(t, "t1dep", q.DepositAddress)
	assert.Equal(t, "m", q.DepositMemo)
	assert.JSONEq(t, `{"depositAddress":"t1dep","depositMemo":"m","amountOut":"99"}`, string(q.Raw))

	assert.Equal(t, false, sent["dry"])
	assert.Equal(t, "EXACT_INPUT", sent["swapType"])
	assert.Equal(t, "SIMPLE", sent["depositMode"])
	assert.EqualValues(t, 100, sent["slippageTolerance"])
	assert.Equal(t, "600000000", sent["amount"])
	assert.Equal(t, "zec-private-agent", sent["referral"])
	assert.Equal(t, "2026-01-02T04:04:05.000Z", sent["deadline"])
	assert.EqualValues(t, 3000, sent["quoteWaitingTimeMs"])
}

func TestRequestQuote_RejectsNonCreated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"quote":{}}`))
	}))
	defer srv.Close()

	_, err := oneclick.New(oneclick.WithBaseURL(srv.URL)).RequestQuote(context.Background(), domain.QuoteRequest{})
	var qerr *domain.QuoteError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, "HTTP 200", qerr.Reason)
}

func TestGetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/status", r.URL.Path)
		switch r.URL.Query().Get("depositAddress") {
		case "t1done":
			_, _ = w.Write([]byte(`{"status":"SUCCESS","swapDetails":{"amountInUsd":"12.5"}}`))
		case "t1wait":
			_, _ = w.Write([]byte(`{"status":"PENDING_DEPOSIT","swapDetails":{}}`))
		default:
			http.Error(w, "unknown", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := oneclick.New(oneclick.WithBaseURL(srv.URL))
	ctx := context.Background()

	st, err := c.GetStatus(ctx, "t1done")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, st.Status)
	require.NotNil(t, st.AmountUSD)
	assert.InDelta(t, 12.5, *st.AmountUSD, 1e-9)

	st, err = c.GetStatus(ctx, "t1wait")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingDeposit, st.Status)
	assert.Nil(t, st.AmountUSD)

	_, err = c.GetStatus(ctx, "t1other")
	assert.Error(t, err)
}

func TestTimeoutIsAnOrdinaryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := oneclick.New(oneclick.WithBaseURL(srv.URL), oneclick.WithTimeouts(20*time.Millisecond, 0, 0))
	_, err := c.ListTokens(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
