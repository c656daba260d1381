package observability

import (
	"context"
	"log/slog"

	"github.com/0x-stone/zspa/pkg/domain"
)

// LoggingHooks logs every lifecycle event at Debug, and failures at Warn.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			logger.Debug("node_enter", "session_id", e.SessionID, "node", e.NodeID)
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			if e.Err != nil {
				logger.Warn("node_leave", "session_id", e.SessionID, "node", e.NodeID, "duration", e.Duration, "err", e.Err)
				return
			}
			logger.Debug("node_leave", "session_id", e.SessionID, "node", e.NodeID, "duration", e.Duration)
		},
		OnForkComplete: func(_ context.Context, e *domain.ForkEvent) {
			logger.Debug("fork_complete", "session_id", e.SessionID, "fork", e.Fork, "duration", e.Duration, "err", e.Err)
		},
		OnVerification: func(_ context.Context, p *domain.Proof) {
			logger.Debug("verification", "node", p.Node, "chat_id", p.ChatID, "verified", p.Verified)
		},
		OnPollCycle: func(_ context.Context, status string, retries int) {
			logger.Debug("poll_cycle", "status", status, "retries", retries)
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			logger.Info("turn_end", "session_id", e.SessionID, "duration", e.Duration, "reentries", e.Reentries, "err", e.Err)
		},
	}
}

// Chain combines hooks; each callback runs in argument order.
func Chain(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		out.OnNodeEnter = chain2(out.OnNodeEnter, h.OnNodeEnter)
		out.OnNodeLeave = chain2(out.OnNodeLeave, h.OnNodeLeave)
		out.OnForkComplete = chain2(out.OnForkComplete, h.OnForkComplete)
		out.OnVerification = chain2(out.OnVerification, h.OnVerification)
		out.OnTurnEnd = chain2(out.OnTurnEnd, h.OnTurnEnd)
		if prev, next := out.OnPollCycle, h.OnPollCycle; next != nil {
			if prev == nil {
				out.OnPollCycle = next
			} else {
				out.OnPollCycle = func(ctx context.Context, status string, retries int) {
					prev(ctx, status, retries)
					next(ctx, status, retries)
				}
			}
		}
	}
	return out
}

func chain2[E any](prev, next func(context.Context, E)) func(context.Context, E) {
	switch {
	case next == nil:
		return prev
	case prev == nil:
		return next
	}
	return func(ctx context.Context, e E) {
		prev(ctx, e)
		next(ctx, e)
	}
}
