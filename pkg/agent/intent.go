package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
	"github.com/0x-stone/zspa/pkg/inference"
	"github.com/0x-stone/zspa/pkg/ports"
)

func (a *agent) classifyIntent(ctx context.Context, st *domain.State) (*graph.Command, error) {
	if st.Flags.VerifyingDonation || st.Flags.UpdatingRefundAddress {
		return nil, nil
	}

	if id := st.RequestedCauseID; id != "" {
		st.RequestedCauseID = ""
		return a.selectByID(ctx, st, id)
	}

	reply := st.Messages.LastUserMessage()
	if st.Flags.AwaitingCauseSelection && len(st.Candidates) > 0 {
		if c := FindBySelection(reply, st.Candidates); c != nil {
			st.SelectCause(*c)
			say(st, NodeClassifyIntent, fmt.Sprintf("Perfect! You've selected **%s**.\n\n", c.Title))
			return nil, nil
		}
	}

	msgs := []ports.ChatMessage{
		system(fmt.Sprintf(classifyPrompt, History(st.Messages.Snapshot()))),
		user(reply),
	}
	out, completion, err := inference.Invoke[IntentClassification](ctx, a.deps.Model, msgs, IntentSchema())
	cmd := verify(nil, completion, NodeClassifyIntent)
	if err != nil {
		// Unusable classifications fall back to a plain answer, as a question,
		// so answer_question still runs its search and answer calls.
		cerr := &domain.ClassificationError{Err: err}
		a.logger.Warn("Intent classification failed", "session_id", st.SessionID, "err", cerr)
		st.Intent = domain.IntentQuestion
		st.Confidence = 0
		return cmd, nil
	}
	st.Intent = out.Intent
	st.Confidence = out.Confidence
	return cmd, nil
}

// selectByID resolves a cause requested directly, skipping classification.
func (a *agent) selectByID(ctx context.Context, st *domain.State, id string) (*graph.Command, error) {
	cause, err := a.deps.Persistence.GetCause(ctx, id)
	if errors.Is(err, domain.ErrCauseNotFound) {
		say(st, NodeClassifyIntent, msgCauseNotFound)
		return graph.Goto(graph.End), nil
	}
	if err != nil {
		return fail(st, "cause_lookup", err), nil
	}
	if err := cause.Validate(); err != nil {
		return fail(st, "cause_lookup", err), nil
	}
	st.SelectCause(*cause)
	say(st, NodeClassifyIntent, fmt.Sprintf("Perfect! You've selected %s.\n\n", cause.Title))
	return nil, nil
}

func (a *agent) parseIntent(ctx context.Context, st *domain.State) (*graph.Command, error) {
	msgs := []ports.ChatMessage{
		system(fmt.Sprintf(parsePrompt, History(st.Messages.Snapshot()))),
		user(st.Messages.LastUserMessage()),
	}
	out, completion, err := inference.Invoke[CauseIntent](ctx, a.deps.Model, msgs, CauseIntentSchema())
	cmd := verify(nil, completion, NodeParseIntent)
	if err != nil {
		a.logger.Warn("Slot parsing failed", "session_id", st.SessionID, "err", err)
	} else {
		applySlots(st, out)
	}

	if st.Intent == domain.IntentOperations && st.SelectedCause != nil && st.Swap.Amount == "" {
		say(st, NodeParseIntent, msgAskAmount)
		st.Flags.RequiresUserInput = true
	}
	return cmd, nil
}

func applySlots(st *domain.State, out CauseIntent) {
	if out.Amount != nil && *out.Amount > 0 {
		amount := *out.Amount
		st.Slots.Amount = &amount
		st.Swap.Amount = FormatAmount(amount)
	}
	st.Slots.Query = deref(out.Query)
	st.Slots.Location = strings.ToLower(deref(out.Location))
	st.Slots.Tags = out.Tags
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
