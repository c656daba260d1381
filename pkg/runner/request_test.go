package runner_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
	"github.com/0x-stone/zspa/pkg/runner"
)

func TestTurnRequest_Apply(t *testing.T) {
	st := domain.NewState("s1")
	st.Swap.RefundAddress = "t1old"
	st.Interests = []string{"old"}
	st.Poll = domain.PollState{Cycle: 2, Retries: 7, Status: domain.StatusProcessing}
	st.Fail("quote_generation", "boom")

	t.Run("overwrites per-turn fields", func(t *testing.T) {
		s := st.Clone()
		runner.TurnRequest{Message: "hello", CauseID: "c-1", UpdateRefundAddress: true}.Apply(s)

		assert.Empty(t, s.Swap.RefundAddress)
		assert.Empty(t, s.Interests)
		assert.Equal(t, "c-1", s.RequestedCauseID)
		assert.True(t, s.Flags.UpdatingRefundAddress)
		assert.False(t, s.Flags.VerifyingDonation)
		assert.False(t, s.Flags.Errored)
		assert.Nil(t, s.LastError)
		assert.Equal(t, 7, s.Poll.Retries, "polling survives ordinary turns")
		assert.Equal(t, "hello", s.Messages.LastUserMessage())
	})

	t.Run("verify donation resets polling", func(t *testing.T) {
		s := st.Clone()
		runner.TurnRequest{VerifyDonation: true, RefundAddress: "t1new"}.Apply(s)

		assert.True(t, s.Flags.VerifyingDonation)
		assert.Equal(t, domain.PollState{Cycle: 3}, s.Poll, "a fresh cycle supersedes running loops")
		assert.Equal(t, "t1new", s.Swap.RefundAddress)
		assert.Equal(t, 0, s.Messages.Len(), "empty message adds no turn")
	})
}

func TestTurnRequest_DecodesWireNames(t *testing.T) {
	var req runner.TurnRequest
	err := json.Unmarshal([]byte(`{
		"message": "hi",
		"session_id": "s1",
		"refund_address": "t1x",
		"user_interests": ["ocean"],
		"verify_donation": true,
		"cause_id": "c-1",
		"update_shielded_address": true
	}`), &req)
	require.NoError(t, err)
	assert.Equal(t, runner.TurnRequest{
		Message:             "hi",
		SessionID:           "s1",
		RefundAddress:       "t1x",
		UserInterests:       []string{"ocean"},
		VerifyDonation:      true,
		CauseID:             "c-1",
		UpdateRefundAddress: true,
	}, req)
}

func TestJSONHandler_Serve(t *testing.T) {
	f := newFixture(t, graph.NewBuilder().Node("greet", reply("hello")).Entry("greet"))
	in := strings.NewReader("plain text\n\n{\"message\":\"json\",\"session_id\":\"s2\"}\n{\"session_id\":\"s3\",\"message\":\"\\u0000\\u00ff\"}")
	var out bytes.Buffer

	h := runner.NewJSONHandler(in, &out)
	require.NoError(t, h.Serve(context.Background(), f.runtime, "cli"))

	var events []domain.Event
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var ev domain.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}

	ends := 0
	for _, ev := range events {
		if ev.Type == domain.EventEnd {
			ends++
		}
	}
	assert.Equal(t, 3, ends)

	cli, err := f.store.Load(context.Background(), "cli")
	require.NoError(t, err)
	assert.Equal(t, "plain text", cli.Messages.LastUserMessage())

	s2, err := f.store.Load(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, "json", s2.Messages.LastUserMessage())
}

func TestJSONHandler_ReportsInvalidTurns(t *testing.T) {
	f := newFixture(t, graph.NewBuilder().Node("greet", reply("hello")).Entry("greet"),
		runner.WithMaxInputSize(4))
	var out bytes.Buffer

	h := runner.NewJSONHandler(strings.NewReader("far too long\n"), &out)
	require.NoError(t, h.Serve(context.Background(), f.runtime, "cli"))

	var ev domain.Event
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &ev))
	assert.Equal(t, domain.EventError, ev.Type)
	assert.Contains(t, ev.Message, "exceeds maximum")
}
