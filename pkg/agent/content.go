package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
	"github.com/0x-stone/zspa/pkg/inference"
	"github.com/0x-stone/zspa/pkg/ports"
)

const (
	questionContextSize = 5
	summaryTopN         = 3
	causeListLimit      = 10
	descriptionPreview  = 100
)

func (a *agent) answerQuestion(ctx context.Context, st *domain.State) (*graph.Command, error) {
	question := st.Messages.LastUserMessage()

	var cmd *graph.Command
	needs, completion := a.needsSearch(ctx, question)
	cmd = verify(cmd, completion, NodeAnswerQuestion)

	prompt := platformAnswerPrompt
	if needs {
		causes, err := a.deps.Search.SearchCauses(ctx, searchQuery(st), st.Interests)
		if err != nil {
			a.logger.Warn("Cause search failed", "session_id", st.SessionID, "err", err)
		}
		if len(causes) > 0 {
			prompt = fmt.Sprintf(causesAnswerPrompt, causeLines(causes, questionContextSize))
		}
	}

	completion, err := a.deps.Model.Complete(ctx, []ports.ChatMessage{system(prompt), user(question)})
	if err != nil {
		a.logger.Warn("Answer generation failed", "session_id", st.SessionID, "err", err)
		say(st, NodeAnswerQuestion, msgAnswerFallback)
		return cmd, nil
	}
	say(st, NodeAnswerQuestion, completion.Content)
	return verify(cmd, completion, NodeAnswerQuestion), nil
}

// needsSearch asks whether a question is about specific causes. Unreadable
// replies count as no.
func (a *agent) needsSearch(ctx context.Context, question string) (bool, ports.Completion) {
	completion, err := a.deps.Model.Complete(ctx, []ports.ChatMessage{
		system(needsSearchSystem),
		user(fmt.Sprintf(needsSearchPrompt, question)),
	})
	if err != nil {
		return false, completion
	}
	var out struct {
		NeedsSearch bool `json:"needs_search"`
	}
	if err := json.Unmarshal([]byte(inference.StripFences(completion.Content)), &out); err != nil {
		return false, completion
	}
	return out.NeedsSearch, completion
}

func causeLines(causes []domain.Cause, n int) string {
	lines := make([]string, 0, n)
	for i, c := range causes {
		if i == n {
			break
		}
		category := c.Category
		if category == "" {
			category = "N/A"
		}
		lines = append(lines, fmt.Sprintf("- %s (Trust: %g/100, Category: %s)", c.Title, c.TrustScore, category))
	}
	return strings.Join(lines, "\n")
}

func searchQuery(st *domain.State) domain.SearchQuery {
	return domain.SearchQuery{
		Text:     st.Slots.Query,
		Location: st.Slots.Location,
		Tags:     st.Slots.Tags,
	}
}

func (a *agent) collectInfo(_ context.Context, st *domain.State) (*graph.Command, error) {
	if st.Swap.RefundAddress != "" {
		return nil, nil
	}
	say(st, NodeCollectInfo, msgAskRefund)
	st.Flags.RequiresUserInput = true
	return nil, nil
}

func (a *agent) endAddressUpdate(_ context.Context, st *domain.State) (*graph.Command, error) {
	st.Flags.UpdatingRefundAddress = false
	return nil, nil
}

type summaryEntry struct {
	Rank             int     `json:"rank"`
	Title            string  `json:"title"`
	TrustScore       float64 `json:"trust_score"`
	Category         string  `json:"category"`
	Location         string  `json:"location"`
	Completion       int     `json:"completion"`
	ShortDescription string  `json:"short_description"`
}

func (a *agent) discoverCauses(ctx context.Context, st *domain.State) (*graph.Command, error) {
	found, err := a.deps.Search.SearchCauses(ctx, searchQuery(st), st.Interests)
	if err != nil {
		return fail(st, "cause_discovery", err), nil
	}

	causes := make([]domain.Cause, 0, len(found))
	for _, c := range found {
		if err := c.Validate(); err != nil {
			a.logger.Warn("Dropping malformed cause", "session_id", st.SessionID, "err", err)
			continue
		}
		causes = append(causes, c)
	}

	if len(causes) == 0 {
		body, _ := json.Marshal(domain.NoResultsPayload{Type: domain.PayloadNoResults, Message: msgNoResults})
		say(st, NodeDiscoverCauses, string(body))
		return nil, nil
	}

	st.OfferCandidates(causes)
	st.Flags.RequiresUserInput = true

	summary, completion := a.summarize(ctx, st, causes)

	views := make([]domain.CauseView, 0, causeListLimit)
	for i, c := range causes {
		if i == causeListLimit {
			break
		}
		views = append(views, c.View())
	}
	body, err := json.Marshal(domain.CauseListPayload{
		Type:       domain.PayloadCauseList,
		Summary:    summary,
		Causes:     views,
		TotalFound: len(causes),
	})
	if err != nil {
		return nil, fmt.Errorf("encode cause list: %w", err)
	}
	say(st, NodeDiscoverCauses, string(body))
	return verify(nil, completion, NodeDiscoverCauses), nil
}

func (a *agent) summarize(ctx context.Context, st *domain.State, causes []domain.Cause) (string, ports.Completion) {
	top := make([]summaryEntry, 0, summaryTopN)
	for i, c := range causes {
		if i == summaryTopN {
			break
		}
		desc := c.ShortDescription
		if r := []rune(desc); len(r) > descriptionPreview {
			desc = string(r[:descriptionPreview])
		}
		top = append(top, summaryEntry{
			Rank:             i + 1,
			Title:            c.Title,
			TrustScore:       c.TrustScore,
			Category:         c.Category,
			Location:         strings.Trim(c.City+", "+c.Country, ", "),
			Completion:       c.Completion(),
			ShortDescription: desc,
		})
	}
	data, _ := json.MarshalIndent(top, "", "  ")

	query := st.Slots.Query
	if query == "" {
		query = "causes"
	}
	location := st.Slots.Location
	if location == "" {
		location = "anywhere"
	}
	prompt := fmt.Sprintf(summaryPrompt, len(causes), query, location, st.Interests, data)

	completion, err := a.deps.Model.Complete(ctx, []ports.ChatMessage{system(summarySystem), user(prompt)})
	if err != nil || strings.TrimSpace(completion.Content) == "" {
		if err != nil {
			a.logger.Warn("Discovery summary failed", "session_id", st.SessionID, "err", err)
		}
		return fmt.Sprintf(msgSummaryFormat, len(causes)), completion
	}
	return strings.TrimSpace(completion.Content), completion
}
