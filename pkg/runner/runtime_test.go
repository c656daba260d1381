package runner_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x-stone/zspa/pkg/adapters/memory"
	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
	"github.com/0x-stone/zspa/pkg/runner"
	"github.com/0x-stone/zspa/pkg/session"
)

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
	onEmit func(domain.Event)
}

func (r *recorder) Emit(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	hook := r.onEmit
	r.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func (r *recorder) ofType(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) last() domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func proofMessage(node string) domain.Message {
	body, _ := json.Marshal(domain.Proof{Type: domain.ProofType, Node: node, ChatID: "chat-1", Verified: true})
	return domain.Message{
		Role:       domain.RoleTool,
		Name:       domain.ToolVerificationProof,
		ToolCallID: "verify_chat-1",
		Content:    string(body),
	}
}

func reply(text string) graph.NodeFunc {
	return func(ctx context.Context, st *domain.State) (*graph.Command, error) {
		st.Messages.Append(domain.Message{ID: "a-" + text, Role: domain.RoleAssistant, Content: text})
		return nil, nil
	}
}

type fixture struct {
	store   *memory.Store
	runtime *runner.Runtime
}

func newFixture(t *testing.T, b *graph.Builder, opts ...runner.Option) fixture {
	t.Helper()
	g, err := b.Build()
	require.NoError(t, err)
	store := memory.NewStore()
	rt := runner.New(graph.NewScheduler(g), session.NewManager(store), opts...)
	return fixture{store: store, runtime: rt}
}

func TestTurn_MergesRunsAndPersists(t *testing.T) {
	f := newFixture(t, graph.NewBuilder().Node("greet", reply("hello")).Entry("greet"))
	rec := &recorder{}

	err := f.runtime.Turn(context.Background(), runner.TurnRequest{
		SessionID:     "s1",
		Message:       "hi\x00 there",
		RefundAddress: "t1refund",
		UserInterests: []string{"ocean"},
	}, rec)
	require.NoError(t, err)

	content := rec.ofType(domain.EventContent)
	require.Len(t, content, 1)
	assert.Equal(t, "hello", content[0].Content)
	assert.Equal(t, "greet", content[0].Node)
	assert.Len(t, rec.ofType(domain.EventStep), 1)
	assert.Equal(t, domain.EventEnd, rec.last().Type)

	st, err := f.store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Version)
	assert.Equal(t, "t1refund", st.Swap.RefundAddress)
	assert.Equal(t, []string{"ocean"}, st.Interests)
	msgs := st.Messages.Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi there", msgs[0].Content)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestTurn_RejectsInvalidRequests(t *testing.T) {
	f := newFixture(t, graph.NewBuilder().Node("greet", reply("hello")).Entry("greet"))
	rec := &recorder{}

	err := f.runtime.Turn(context.Background(), runner.TurnRequest{Message: "hi"}, rec)
	assert.ErrorIs(t, err, runner.ErrMissingSessionID)

	err = f.runtime.Turn(context.Background(), runner.TurnRequest{SessionID: "s1", Message: "\xff"}, rec)
	assert.ErrorIs(t, err, runner.ErrInvalidUTF8)

	assert.Empty(t, rec.events)
}

func TestTurn_DrainsForksBeforeEnd(t *testing.T) {
	b := graph.NewBuilder().
		Node("answer", func(ctx context.Context, st *domain.State) (*graph.Command, error) {
			st.Messages.Append(domain.Message{ID: "a1", Role: domain.RoleAssistant, Content: "answer"})
			return graph.Spawn("verify", "answer"), nil
		}).
		Fork("verify", func(ctx context.Context, payload any) ([]domain.Message, error) {
			time.Sleep(20 * time.Millisecond)
			return []domain.Message{proofMessage(payload.(string))}, nil
		}).
		Entry("answer")
	f := newFixture(t, b)
	rec := &recorder{}

	require.NoError(t, f.runtime.Turn(context.Background(), runner.TurnRequest{SessionID: "s1", Message: "q"}, rec))

	proofs := rec.ofType(domain.EventVerification)
	require.Len(t, proofs, 1)
	assert.Equal(t, "answer", proofs[0].Node)
	assert.True(t, proofs[0].Proof.Verified)
	assert.Equal(t, domain.EventEnd, rec.last().Type)

	st, err := f.store.Load(context.Background(), "s1")
	require.NoError(t, err)
	found, ok := st.Messages.Find(domain.ToolVerificationProof, "verify_chat-1")
	require.True(t, ok, "fork result must be persisted")
	assert.True(t, found.Async)

	count := 0
	for _, m := range st.Messages.Snapshot() {
		if m.Name == domain.ToolVerificationProof {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestTurn_AbandonsForksAfterGrace(t *testing.T) {
	cancelled := make(chan struct{})
	b := graph.NewBuilder().
		Node("answer", func(ctx context.Context, st *domain.State) (*graph.Command, error) {
			return graph.Spawn("stuck", nil), nil
		}).
		Fork("stuck", func(ctx context.Context, payload any) ([]domain.Message, error) {
			<-ctx.Done()
			close(cancelled)
			return []domain.Message{proofMessage("answer")}, nil
		}).
		Entry("answer")
	f := newFixture(t, b, runner.WithForkGrace(10*time.Millisecond))
	rec := &recorder{}

	require.NoError(t, f.runtime.Turn(context.Background(), runner.TurnRequest{SessionID: "s1"}, rec))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("fork was not cancelled")
	}
	assert.Empty(t, rec.ofType(domain.EventVerification))
	assert.Equal(t, domain.EventEnd, rec.last().Type)
}

func pollUntil(limit int) graph.NodeFunc {
	return func(ctx context.Context, st *domain.State) (*graph.Command, error) {
		st.Poll.Retries++
		if st.Poll.Retries < limit {
			return &graph.Command{Goto: "poll", After: time.Millisecond}, nil
		}
		st.Poll.Status = domain.StatusSuccess
		return graph.Goto(graph.End), nil
	}
}

func TestTurn_ReentersUntilTerminal(t *testing.T) {
	var turn *domain.TurnEvent
	f := newFixture(t, graph.NewBuilder().Node("poll", pollUntil(3)).Entry("poll"),
		runner.WithHooks(domain.LifecycleHooks{
			OnTurnEnd: func(_ context.Context, ev *domain.TurnEvent) { turn = ev },
		}))
	rec := &recorder{}

	require.NoError(t, f.runtime.Turn(context.Background(), runner.TurnRequest{SessionID: "s1", VerifyDonation: true}, rec))

	assert.Len(t, rec.ofType(domain.EventStep), 3)
	require.NotNil(t, turn)
	assert.Equal(t, 2, turn.Reentries)
	assert.NoError(t, turn.Err)

	st, err := f.store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, st.Poll.Retries)
	assert.Equal(t, domain.StatusSuccess, st.Poll.Status)
	assert.EqualValues(t, 3, st.Version)
}

func TestTurn_VerifyDonationResetsPolling(t *testing.T) {
	f := newFixture(t, graph.NewBuilder().Node("poll", pollUntil(1)).Entry("poll"))
	ctx := context.Background()

	require.NoError(t, f.runtime.Turn(ctx, runner.TurnRequest{SessionID: "s1", VerifyDonation: true}, nil))
	require.NoError(t, f.runtime.Turn(ctx, runner.TurnRequest{SessionID: "s1", VerifyDonation: true}, nil))

	st, err := f.store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Poll.Retries)
}

func TestTurn_CancelledPollingDoesNotResume(t *testing.T) {
	b := graph.NewBuilder().
		Node("poll", func(ctx context.Context, st *domain.State) (*graph.Command, error) {
			st.Poll.Retries++
			return &graph.Command{Goto: "poll", After: time.Hour}, nil
		}).
		Entry("poll")
	f := newFixture(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &recorder{onEmit: func(ev domain.Event) {
		if ev.Type == domain.EventStep {
			cancel()
		}
	}}

	err := f.runtime.Turn(ctx, runner.TurnRequest{SessionID: "s1"}, rec)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rec.ofType(domain.EventStep), 1)
	assert.Equal(t, domain.EventEnd, rec.last().Type)

	st, err := f.store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Poll.Retries)
}

func TestTurn_UnexpectedErrorIsNotPersisted(t *testing.T) {
	boom := errors.New("boom")
	b := graph.NewBuilder().
		Node("explode", func(ctx context.Context, st *domain.State) (*graph.Command, error) {
			st.Swap.Amount = "1"
			return nil, boom
		}).
		Entry("explode")
	f := newFixture(t, b)
	rec := &recorder{}

	err := f.runtime.Turn(context.Background(), runner.TurnRequest{SessionID: "s1", Message: "hi"}, rec)
	assert.ErrorIs(t, err, boom)

	errs := rec.ofType(domain.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "explode", errs[0].Node)
	assert.NotContains(t, errs[0].Message, "boom")
	assert.Equal(t, domain.EventEnd, rec.last().Type)

	_, err = f.store.Load(context.Background(), "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestTurn_PanicBecomesErrorEvent(t *testing.T) {
	b := graph.NewBuilder().
		Node("explode", func(ctx context.Context, st *domain.State) (*graph.Command, error) {
			panic("kaboom")
		}).
		Entry("explode")
	f := newFixture(t, b)
	rec := &recorder{}

	err := f.runtime.Turn(context.Background(), runner.TurnRequest{SessionID: "s1"}, rec)
	var panicErr *graph.NodePanicError
	assert.ErrorAs(t, err, &panicErr)
	assert.Len(t, rec.ofType(domain.EventError), 1)
}

func TestTurn_SerializesSameSession(t *testing.T) {
	f := newFixture(t, graph.NewBuilder().Node("greet", reply("hello")).Entry("greet"))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.runtime.Turn(context.Background(), runner.TurnRequest{SessionID: "s1", Message: "hi"}, nil))
		}()
	}
	wg.Wait()

	st, err := f.store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 5, st.Version)
	assert.Equal(t, 10, st.Messages.Len())
}

// settlementGraph routes verify turns to a poller that settles on its third
// cycle and counts the donations it records. Other turns just reply.
func settlementGraph(recorded *atomic.Int32) *graph.Builder {
	return graph.NewBuilder().
		Node("start", func(ctx context.Context, st *domain.State) (*graph.Command, error) {
			if st.Flags.VerifyingDonation {
				return graph.Goto("poll"), nil
			}
			st.Messages.Append(domain.Message{ID: "a-hello", Role: domain.RoleAssistant, Content: "hello"})
			return graph.Goto(graph.End), nil
		}).
		Node("poll", func(ctx context.Context, st *domain.State) (*graph.Command, error) {
			st.Poll.Retries++
			if st.Poll.Retries < 3 {
				return &graph.Command{Goto: "poll", After: 30 * time.Millisecond}, nil
			}
			recorded.Add(1)
			st.Poll.Status = domain.StatusSuccess
			st.Flags.VerifyingDonation = false
			return graph.Goto(graph.End), nil
		}).
		Entry("start")
}

// startPolling runs a verify turn in the background and returns once its
// first polling cycle has run.
func startPolling(t *testing.T, rt *runner.Runtime) (*recorder, <-chan error) {
	t.Helper()
	polled := make(chan struct{})
	var once sync.Once
	rec := &recorder{onEmit: func(ev domain.Event) {
		if ev.Type == domain.EventStep && ev.Node == "poll" {
			once.Do(func() { close(polled) })
		}
	}}
	done := make(chan error, 1)
	go func() {
		done <- rt.Turn(context.Background(), runner.TurnRequest{SessionID: "s1", VerifyDonation: true}, rec)
	}()
	select {
	case <-polled:
	case <-time.After(5 * time.Second):
		t.Fatal("first polling cycle did not run")
	}
	return rec, done
}

func TestTurn_OverlappingVerifyTurnsRecordOnce(t *testing.T) {
	var recorded atomic.Int32
	f := newFixture(t, settlementGraph(&recorded))

	first, done := startPolling(t, f.runtime)
	require.NoError(t, f.runtime.Turn(context.Background(), runner.TurnRequest{SessionID: "s1", VerifyDonation: true}, nil))
	require.NoError(t, <-done)

	assert.EqualValues(t, 1, recorded.Load())
	pollSteps := 0
	for _, ev := range first.ofType(domain.EventStep) {
		if ev.Node == "poll" {
			pollSteps++
		}
	}
	assert.Equal(t, 1, pollSteps, "the superseded loop stops at its next cycle")
	assert.Equal(t, domain.EventEnd, first.last().Type)

	st, err := f.store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, st.Poll.Status)
	assert.EqualValues(t, 2, st.Poll.Cycle)
}

func TestTurn_PlainTurnEndsPolling(t *testing.T) {
	var recorded atomic.Int32
	f := newFixture(t, settlementGraph(&recorded))

	_, done := startPolling(t, f.runtime)
	require.NoError(t, f.runtime.Turn(context.Background(), runner.TurnRequest{SessionID: "s1", Message: "hi"}, nil))
	require.NoError(t, <-done)

	assert.Zero(t, recorded.Load())
	st, err := f.store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.False(t, st.Flags.VerifyingDonation)
	assert.Equal(t, 1, st.Poll.Retries)
}
