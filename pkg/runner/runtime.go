package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/0x-stone/zspa/internal/logging"
	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
	"github.com/0x-stone/zspa/pkg/session"
)

// DefaultForkGrace is how long a turn waits for pending verifications
// before closing the stream.
const DefaultForkGrace = 30 * time.Second

// errPollSuperseded stops a re-entry whose polling cycle is no longer current.
var errPollSuperseded = errors.New("polling cycle superseded")

// genericFailure is the only detail an unexpected failure exposes to the donor.
const genericFailure = "An unexpected error occurred. Please try again."

// Runtime executes donor turns against the graph, one turn per session at a time.
type Runtime struct {
	scheduler *graph.Scheduler
	sessions  *session.Manager
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	forkGrace time.Duration
	maxInput  int
}

// Option configures the Runtime.
type Option func(*Runtime)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithForkGrace bounds the wait for verification forks at the end of a turn.
// Zero abandons pending forks immediately.
func WithForkGrace(d time.Duration) Option {
	return func(r *Runtime) {
		r.forkGrace = d
	}
}

// WithMaxInputSize sets the accepted message size in bytes.
func WithMaxInputSize(n int) Option {
	return func(r *Runtime) {
		r.maxInput = n
	}
}

// WithHooks registers the turn lifecycle callbacks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(r *Runtime) {
		r.hooks = h
	}
}

// New creates a Runtime.
func New(scheduler *graph.Scheduler, sessions *session.Manager, opts ...Option) *Runtime {
	r := &Runtime{
		scheduler: scheduler,
		sessions:  sessions,
		logger:    logging.NewNop(),
		forkGrace: DefaultForkGrace,
		maxInput:  DefaultMaxInputSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxInputSize returns the accepted message size in bytes.
func (r *Runtime) MaxInputSize() int { return r.maxInput }

// invocation is one locked run of the graph.
type invocation struct {
	outcome *graph.Outcome
	// state is the live record the invocation's forks append to.
	state *domain.State
}

// Turn runs one donor turn and streams its events to sink. Polling re-entries
// keep the turn open until the poller reaches a terminal status or ctx is done.
// The end marker is always the last event delivered to sink.
func (r *Runtime) Turn(ctx context.Context, req TurnRequest, sink domain.Emitter) (err error) {
	if err := req.Validate(r.maxInput); err != nil {
		return err
	}
	out := newGuardedEmitter(sink)
	start := time.Now()
	log := r.logger.With("session_id", req.SessionID)

	var runs []*invocation
	reentries := 0
	defer func() {
		r.drain(ctx, runs, req.SessionID, log)
		out.Emit(ctx, domain.Event{Type: domain.EventEnd})
		out.close()
		if r.hooks.OnTurnEnd != nil {
			r.hooks.OnTurnEnd(ctx, &domain.TurnEvent{
				Timestamp: time.Now(),
				SessionID: req.SessionID,
				Duration:  time.Since(start),
				Reentries: reentries,
				Err:       err,
			})
		}
	}()

	apply := func(st *domain.State) error {
		req.Apply(st)
		return nil
	}
	inv, err := r.invoke(ctx, req.SessionID, apply, func(ctx context.Context, st *domain.State) (*graph.Outcome, error) {
		return r.scheduler.Run(ctx, st, out)
	})
	if inv != nil {
		runs = append(runs, inv)
	}
	if err != nil {
		return r.failed(ctx, out, log, err)
	}

	// Re-entries belong to the polling cycle started by this turn.
	cycle := inv.state.Poll.Cycle
	for inv.outcome.Reentry != nil {
		next := *inv.outcome.Reentry
		timer := time.NewTimer(next.After)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("Turn abandoned while polling", "node", next.Node, "err", ctx.Err())
			return ctx.Err()
		case <-timer.C:
		}

		reentries++
		resume := func(st *domain.State) error {
			if !pollingCurrent(st, cycle) {
				return errPollSuperseded
			}
			absorbForks(st, runs)
			return nil
		}
		inv, err = r.invoke(ctx, req.SessionID, resume, func(ctx context.Context, st *domain.State) (*graph.Outcome, error) {
			return r.scheduler.RunFrom(ctx, next.Node, st, out)
		})
		if inv != nil {
			runs = append(runs, inv)
		}
		if errors.Is(err, errPollSuperseded) {
			log.Info("Polling stopped: cycle superseded", "node", next.Node, "cycle", cycle)
			return nil
		}
		if err != nil {
			return r.failed(ctx, out, log, err)
		}
	}
	return nil
}

// invoke loads the session under its lock, prepares it, runs the graph and
// saves the result. Nothing is saved when prepare or run fails.
func (r *Runtime) invoke(
	ctx context.Context,
	sessionID string,
	prepare func(*domain.State) error,
	run func(context.Context, *domain.State) (*graph.Outcome, error),
) (*invocation, error) {
	var inv *invocation
	err := r.sessions.WithSession(ctx, sessionID, func(ctx context.Context, st *domain.State) error {
		if err := prepare(st); err != nil {
			return err
		}
		outcome, err := run(ctx, st)
		if outcome != nil {
			inv = &invocation{outcome: outcome, state: st}
		}
		return err
	})
	if err != nil && inv != nil {
		// The state these forks would report into was discarded.
		inv.outcome.Forks.Cancel()
		inv = nil
	}
	return inv, err
}

func (r *Runtime) failed(ctx context.Context, out domain.Emitter, log *slog.Logger, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		log.Info("Turn cancelled", "err", err)
		return err
	}
	var nodeErr *graph.NodeError
	var node string
	if errors.As(err, &nodeErr) {
		node = nodeErr.Node
	}
	log.Error("Turn failed", "node", node, "err", err)
	out.Emit(ctx, domain.Event{Type: domain.EventError, Node: node, Message: genericFailure})
	return fmt.Errorf("turn failed: %w", err)
}

// drain waits up to the grace period for forks, persists the messages they
// produced and cancels whatever is still running.
func (r *Runtime) drain(ctx context.Context, runs []*invocation, sessionID string, log *slog.Logger) {
	pending := 0
	for _, inv := range runs {
		pending += inv.outcome.Forks.Len()
	}
	if pending == 0 {
		return
	}

	if r.forkGrace > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, r.forkGrace)
		for _, inv := range runs {
			if err := inv.outcome.Forks.Wait(waitCtx); err != nil {
				log.Warn("Abandoning pending verifications", "forks", pending, "err", err)
				break
			}
		}
		cancel()
	}
	produced := 0
	for _, inv := range runs {
		inv.outcome.Forks.Cancel()
		for _, m := range inv.state.Messages.Snapshot() {
			if m.Async {
				produced++
			}
		}
	}
	if produced == 0 {
		return
	}

	// Fork results arrive after the invocation saved; fold them in under the lock.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	added := 0
	err := r.sessions.WithSession(saveCtx, sessionID, func(_ context.Context, st *domain.State) error {
		added = absorbForks(st, runs)
		return nil
	})
	if err != nil {
		log.Warn("Failed to persist verification results", "err", err)
		return
	}
	log.Debug("state saved", "fork_messages", added)
}

// pollingCurrent reports whether the saved state still runs the polling cycle
// a turn started. A later verify request, a plain turn that left verification
// mode or a terminal status all end the cycle.
func pollingCurrent(st *domain.State, cycle int64) bool {
	return st.Flags.VerifyingDonation && !st.Poll.Terminal() && st.Poll.Cycle == cycle
}

// absorbForks appends the fork messages of earlier invocations missing from st.
func absorbForks(st *domain.State, runs []*invocation) int {
	seen := make(map[string]bool)
	for _, m := range st.Messages.Snapshot() {
		seen[messageKey(m)] = true
	}
	var missing []domain.Message
	for _, inv := range runs {
		if inv.state == st {
			continue
		}
		for _, m := range inv.state.Messages.Snapshot() {
			if key := messageKey(m); m.Async && !seen[key] {
				seen[key] = true
				missing = append(missing, m)
			}
		}
	}
	if len(missing) > 0 {
		st.Messages.Append(missing...)
	}
	return len(missing)
}

// messageKey identifies a log entry. Tool entries without an id are keyed by
// tool name and call id.
func messageKey(m domain.Message) string {
	if m.ID != "" {
		return m.ID
	}
	return m.Name + "/" + m.ToolCallID
}
