package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
	"github.com/0x-stone/zspa/pkg/runner"
)

type stubTurner struct {
	events []domain.Event
	got    runner.TurnRequest
	err    error
}

func (s *stubTurner) MaxInputSize() int { return 64 }

func (s *stubTurner) Turn(ctx context.Context, req runner.TurnRequest, sink domain.Emitter) error {
	s.got = req
	for _, ev := range s.events {
		sink.Emit(ctx, ev)
	}
	sink.Emit(ctx, domain.Event{Type: domain.EventEnd})
	return s.err
}

// readFrames splits an SSE body into its data payloads.
func readFrames(t *testing.T, body string) []string {
	t.Helper()
	var out []string
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "unexpected line %q", line)
		out = append(out, strings.TrimPrefix(line, "data: "))
	}
	return out
}

func decodeFrame(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestChat_StreamsEnvelope(t *testing.T) {
	proof := &domain.Proof{Type: domain.ProofType, Node: "answer_question", ChatID: "chat-1", Verified: true}
	failed := &domain.Proof{Type: domain.ProofType, Node: "parse_intent", ChatID: "chat-2"}
	turner := &stubTurner{events: []domain.Event{
		{Type: domain.EventContent, Node: "answer_question", Content: "Hello"},
		{Type: domain.EventStep, Node: "answer_question", Message: "Completed: Answer Question"},
		{Type: domain.EventVerification, Node: "answer_question", Proof: proof},
		{Type: domain.EventVerification, Node: "parse_intent", Proof: failed},
		{Type: domain.EventPaymentStatus, Node: "verify_donation_node", Content: `{"status":"PROCESSING","message":"Payment detected! Processing..."}`},
		{Type: domain.EventError, Node: "notify_on_error", Content: `{"error_type":"quote_generation","error":"Invalid amount format"}`},
	}}
	h := NewHandler(turner)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"message":"hi","session_id":"s1","refund_address":"t1x"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "t1x", turner.got.RefundAddress)

	frames := readFrames(t, rec.Body.String())
	require.Len(t, frames, 11)

	first := decodeFrame(t, frames[0])
	assert.Equal(t, "status", first["type"])
	assert.Equal(t, msgConnected, first["message"])

	content := decodeFrame(t, frames[1])
	assert.Equal(t, "content", content["type"])
	assert.Equal(t, "Hello", content["content"])
	assert.Equal(t, "answer_question", content["node"])

	step := decodeFrame(t, frames[2])
	assert.Equal(t, "answer_question", step["step"])
	assert.Equal(t, "Completed: Answer Question", step["message"])

	assert.Equal(t, "verification", decodeFrame(t, frames[3])["type"])
	assert.Equal(t, "verified TEE Verification for answer_question: PASSED", decodeFrame(t, frames[4])["message"])
	assert.Equal(t, "not verified TEE Verification for parse_intent: FAILED", decodeFrame(t, frames[6])["message"])

	payment := decodeFrame(t, frames[7])
	assert.Equal(t, "PROCESSING", payment["status"])
	assert.Equal(t, "Payment detected! Processing...", payment["message"])

	errFrame := decodeFrame(t, frames[8])
	assert.Equal(t, map[string]any{"error_type": "quote_generation", "error": "Invalid amount format"}, errFrame["error"])

	assert.Equal(t, msgComplete, decodeFrame(t, frames[9])["message"])
	assert.Equal(t, "[DONE]", frames[10])
}

func TestChat_GenericErrorFrame(t *testing.T) {
	turner := &stubTurner{events: []domain.Event{{Type: domain.EventError, Message: "An unexpected error occurred."}}}
	rec := httptest.NewRecorder()
	NewHandler(turner).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"session_id":"s1"}`)))

	frames := readFrames(t, rec.Body.String())
	require.Len(t, frames, 4)
	errFrame := decodeFrame(t, frames[1])
	assert.Equal(t, "error", errFrame["type"])
	assert.Equal(t, "An unexpected error occurred.", errFrame["message"])
}

func TestChat_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"session_id":`},
		{"missing session", `{"message":"hi"}`},
		{"oversized message", `{"session_id":"s1","message":"` + strings.Repeat("a", 65) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turner := &stubTurner{}
			rec := httptest.NewRecorder()
			NewHandler(turner).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, turner.got.SessionID, "turn must not run")
		})
	}
}

func TestHealthInfoAndCORS(t *testing.T) {
	h := NewHandler(&stubTurner{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/info", nil))
	assert.Contains(t, rec.Body.String(), `"app":"zspa-http"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics are mounted only when configured")
}

func TestMetricsAndGraphMounts(t *testing.T) {
	g, err := graph.NewBuilder().
		Node("a", func(context.Context, *domain.State) (*graph.Command, error) { return nil, nil }).
		Edge("a", graph.End).
		Entry("a").
		Build()
	require.NoError(t, err)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("up 1\n")) })
	h := NewHandler(&stubTurner{}, WithMetrics(metrics), WithGraph(g))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "up 1\n", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graph", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var view graphView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "a", view.Entry)
	assert.Equal(t, []graph.Edge{{From: "a", To: graph.End}}, view.Edges)
	assert.Contains(t, view.Mermaid, "graph TD")
}
