package graph

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/0x-stone/zspa/internal/logging"
	"github.com/0x-stone/zspa/pkg/domain"
)

// DefaultMaxSteps bounds the nodes executed in one invocation.
const DefaultMaxSteps = 25

// Reentry asks the caller to run the graph again from Node after a delay.
type Reentry struct {
	Node  string
	After time.Duration
}

// Outcome summarizes one invocation.
type Outcome struct {
	Visited []string
	// Reentry is set when a node scheduled a delayed continuation.
	Reentry *Reentry
	// Forks holds the side tasks spawned by this invocation. Never nil.
	Forks *ForkGroup
}

// Scheduler walks a Graph.
type Scheduler struct {
	graph    *Graph
	maxSteps int
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxSteps sets the per-invocation step budget.
func WithMaxSteps(n int) Option {
	return func(s *Scheduler) {
		s.maxSteps = n
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(s *Scheduler) {
		s.hooks = h
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// NewScheduler creates a scheduler for g.
func NewScheduler(g *Graph, opts ...Option) *Scheduler {
	s := &Scheduler{
		graph:    g,
		maxSteps: DefaultMaxSteps,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Graph returns the graph being executed.
func (s *Scheduler) Graph() *Graph { return s.graph }

// Run executes the graph from its entry node.
func (s *Scheduler) Run(ctx context.Context, st *domain.State, emit domain.Emitter) (*Outcome, error) {
	return s.RunFrom(ctx, s.graph.entry, st, emit)
}

// RunFrom executes the graph starting at node. Forks outlive the call and are
// bound to ctx; cancel ctx or call Outcome.Forks.Cancel to abandon them.
func (s *Scheduler) RunFrom(ctx context.Context, node string, st *domain.State, emit domain.Emitter) (*Outcome, error) {
	if emit == nil {
		emit = domain.EmitterFunc(func(context.Context, domain.Event) {})
	}
	out := &Outcome{Forks: newForkGroup(ctx)}
	if !s.graph.HasNode(node) {
		return out, fmt.Errorf("%w: %q", ErrUnknownTarget, node)
	}

	current := node
	for current != End {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if len(out.Visited) >= s.maxSteps {
			return out, &StepLimitError{Limit: s.maxSteps, Path: out.Visited}
		}
		out.Visited = append(out.Visited, current)

		cmd, err := s.step(ctx, current, st, emit)
		if err != nil {
			return out, err
		}

		if cmd != nil {
			for _, send := range cmd.Sends {
				if err := s.spawn(out.Forks, st, current, send, emit); err != nil {
					return out, err
				}
			}
		}

		next, err := s.next(current, cmd, st)
		if err != nil {
			return out, err
		}
		if cmd != nil && cmd.After > 0 && next != End {
			out.Reentry = &Reentry{Node: next, After: cmd.After}
			return out, nil
		}
		current = next
	}
	return out, nil
}

// step runs one node, emits what it appended and converts panics to errors.
func (s *Scheduler) step(ctx context.Context, name string, st *domain.State, emit domain.Emitter) (cmd *Command, err error) {
	fn := s.graph.nodes[name]
	mark := st.Messages.Len()
	start := time.Now()

	if s.hooks.OnNodeEnter != nil {
		s.hooks.OnNodeEnter(ctx, &domain.NodeEvent{Timestamp: start, SessionID: st.SessionID, NodeID: name})
	}
	defer func() {
		if r := recover(); r != nil {
			err = &NodePanicError{Node: name, Value: r, Stack: debug.Stack()}
			cmd = nil
		}
		if s.hooks.OnNodeLeave != nil {
			s.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
				Timestamp: time.Now(),
				SessionID: st.SessionID,
				NodeID:    name,
				Duration:  time.Since(start),
				Err:       err,
			})
		}
	}()

	cmd, err = fn(ctx, st)
	if err != nil {
		return nil, &NodeError{Node: name, Err: err}
	}

	for _, m := range st.Messages.Since(mark) {
		if m.Async {
			continue
		}
		if ev, ok := MessageEvent(m, name); ok {
			emit.Emit(ctx, ev)
		}
	}
	emit.Emit(ctx, domain.Event{Type: domain.EventStep, Node: name, Message: StepMessage(name)})
	return cmd, nil
}

func (s *Scheduler) next(current string, cmd *Command, st *domain.State) (string, error) {
	if cmd != nil && cmd.Goto != "" {
		if cmd.Goto != End && !s.graph.HasNode(cmd.Goto) {
			return "", fmt.Errorf("%w: %s -> %q", ErrUnknownTarget, current, cmd.Goto)
		}
		return cmd.Goto, nil
	}
	if r, ok := s.graph.routes[current]; ok {
		to := r.fn(st)
		if !r.targets[to] {
			return "", fmt.Errorf("%w: router of %s returned %q", ErrUnknownTarget, current, to)
		}
		return to, nil
	}
	if to, ok := s.graph.edges[current]; ok {
		return to, nil
	}
	return End, nil
}

func (s *Scheduler) spawn(group *ForkGroup, st *domain.State, origin string, send Send, emit domain.Emitter) error {
	fn, ok := s.graph.forks[send.Fork]
	if !ok {
		return fmt.Errorf("%w: %s spawned unknown fork %q", ErrUnknownTarget, origin, send.Fork)
	}
	log := st.Messages
	sessionID := st.SessionID

	group.spawn(func(ctx context.Context) {
		start := time.Now()
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("fork %s panicked: %v", send.Fork, r)
				s.logger.Error("Fork panicked", "fork", send.Fork, "session_id", sessionID, "panic", r)
			}
			if s.hooks.OnForkComplete != nil {
				s.hooks.OnForkComplete(ctx, &domain.ForkEvent{
					Timestamp: time.Now(),
					SessionID: sessionID,
					Fork:      send.Fork,
					Duration:  time.Since(start),
					Err:       err,
				})
			}
		}()

		var msgs []domain.Message
		msgs, err = fn(ctx, send.Payload)
		if err != nil {
			s.logger.Warn("Fork failed", "fork", send.Fork, "session_id", sessionID, "err", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		for i := range msgs {
			msgs[i].Async = true
			if msgs[i].Node == "" {
				msgs[i].Node = origin
			}
		}
		log.Append(msgs...)
		for _, m := range msgs {
			if ev, ok := MessageEvent(m, origin); ok {
				emit.Emit(ctx, ev)
			}
		}
	})
	return nil
}
