package agent_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/0x-stone/zspa/pkg/adapters/memory"
	"github.com/0x-stone/zspa/pkg/agent"
	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
	"github.com/0x-stone/zspa/pkg/ports"
	"github.com/0x-stone/zspa/pkg/verifier"
)

// responder answers one inference call given its system and user prompts.
type responder func(system, user string) (string, error)

type scriptedModel struct {
	mu      sync.Mutex
	respond responder
	calls   [][]ports.ChatMessage
}

func (m *scriptedModel) Complete(_ context.Context, msgs []ports.ChatMessage) (ports.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, msgs)
	var sys, usr string
	for _, msg := range msgs {
		switch msg.Role {
		case "system":
			if sys == "" {
				sys = msg.Content
			}
		case "user":
			usr = msg.Content
		}
	}
	content, err := m.respond(sys, usr)
	if err != nil {
		return ports.Completion{}, err
	}
	return ports.Completion{
		Content:      content,
		ChatID:       fmt.Sprintf("chat-%d", len(m.calls)),
		RequestHash:  "req",
		ResponseHash: "resp",
	}, nil
}

// prompts returns the system prompts sent so far, in order.
func (m *scriptedModel) prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, call := range m.calls {
		for _, msg := range call {
			if msg.Role == "system" {
				out = append(out, msg.Content)
			}
		}
	}
	return out
}

func isClassify(sys string) bool    { return strings.HasPrefix(sys, "IMPORTANT: Analyze") }
func isParse(sys string) bool       { return strings.HasPrefix(sys, "You are an intelligent Philanthropy Agent") }
func isNeedsSearch(sys string) bool { return strings.HasPrefix(sys, "You classify if questions need database search") }
func isSummary(sys string) bool     { return strings.HasPrefix(sys, "You are an enthusiastic") }

// donorScript plays the model side of the donation conversation.
func donorScript(sys, usr string) (string, error) {
	lower := strings.ToLower(usr)
	switch {
	case isClassify(sys):
		switch {
		case strings.Contains(lower, "donate to"):
			return `{"intent_type":"discover_causes","confidence":0.95}`, nil
		case strings.Contains(lower, "zec"), strings.HasPrefix(lower, "zs1"):
			return `{"intent_type":"operations","confidence":0.9}`, nil
		default:
			return `{"intent_type":"question","confidence":0.8}`, nil
		}
	case isParse(sys):
		switch {
		case strings.Contains(lower, "ocean"):
			return "```json\n{\"text_query\":\"ocean\",\"location\":null,\"tags\":[\"ocean\"],\"amount\":null}\n```", nil
		case strings.Contains(lower, "6 zec"):
			return `{"text_query":null,"location":null,"tags":null,"amount":6.0}`, nil
		default:
			return `{"text_query":null,"location":null,"tags":null,"amount":null}`, nil
		}
	case isNeedsSearch(sys):
		return `{"needs_search": false}`, nil
	case isSummary(sys):
		return "Ocean Cleanup Initiative stands out with a strong trust score.", nil
	default:
		return "ZSPA lets you donate privately with shielded ZEC.", nil
	}
}

type fakeSwap struct {
	mu          sync.Mutex
	tokens      []domain.Token
	tokensErr   error
	quoteErr    error
	quotes      []domain.QuoteRequest
	statuses    []string
	statusErr   error
	statusCalls int
	amountUSD   float64
}

func newFakeSwap() *fakeSwap {
	return &fakeSwap{
		tokens: []domain.Token{
			{Symbol: "wZEC", Chain: "near", AssetID: "nep141:wzec"},
			{Symbol: "ZEC", Chain: "zec", AssetID: "nep141:zec.omft.near"},
			{Symbol: "USDC", Chain: "eth", AssetID: "nep141:eth-usdc.omft.near"},
		},
		amountUSD: 240,
	}
}

func (s *fakeSwap) ListTokens(context.Context) ([]domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, s.tokensErr
}

func (s *fakeSwap) RequestQuote(_ context.Context, req domain.QuoteRequest) (*domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = append(s.quotes, req)
	if s.quoteErr != nil {
		return nil, s.quoteErr
	}
	return &domain.Quote{
		DepositAddress: "t1deposit",
		DepositMemo:    "memo-1",
		Raw:            []byte(`{"depositAddress":"t1deposit","amountIn":"` + req.Amount + `"}`),
	}, nil
}

func (s *fakeSwap) GetStatus(context.Context, string) (*domain.SwapStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	status := domain.StatusPendingDeposit
	if len(s.statuses) > 0 {
		i := s.statusCalls - 1
		if i >= len(s.statuses) {
			i = len(s.statuses) - 1
		}
		status = s.statuses[i]
	}
	usd := s.amountUSD
	return &domain.SwapStatus{Status: status, AmountUSD: &usd}, nil
}

type unpublished struct{}

func (unpublished) GetSignature(context.Context, string) (*domain.Attestation, error) {
	return nil, domain.ErrAttestationNotFound
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Emit(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
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

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func testCauses() []domain.Cause {
	return []domain.Cause{
		{
			ID: "c-ocean", Title: "Ocean Cleanup Initiative", DisplayName: "OceanCo",
			ShortDescription: "Removing plastic from the sea", TrustScore: 80,
			GoalAmount: 1000, AmountRaised: 100, Status: "active",
			PreferredToken: "USDC", PreferredChain: "eth", WalletAddress: "0xrecipient",
			WebsiteURL: "https://ocean.example.org", Category: "environment",
		},
		{
			ID: "c-reef", Title: "Reef Restoration", DisplayName: "Reefers",
			ShortDescription: "Replanting coral in ocean reefs", TrustScore: 80,
			Status: "active", PreferredToken: "USDC", PreferredChain: "eth", WalletAddress: "0xreef",
		},
		{
			ID: "c-privacy", Title: "Privacy Tools Fund", DisplayName: "PTF",
			ShortDescription: "Open source privacy software", TrustScore: 90,
			Status: "active", PreferredToken: "DOGE", PreferredChain: "doge", WalletAddress: "Dxyz",
		},
	}
}

type harness struct {
	sched   *graph.Scheduler
	model   *scriptedModel
	swap    *fakeSwap
	catalog *memory.Catalog
	events  *recorder
}

func newHarness(t *testing.T, respond responder, opts ...agent.Option) *harness {
	t.Helper()
	h := &harness{
		model:   &scriptedModel{respond: respond},
		swap:    newFakeSwap(),
		catalog: memory.NewCatalog(testCauses()...),
		events:  &recorder{},
	}
	g, err := agent.New(agent.Deps{
		Persistence: h.catalog,
		Search:      h.catalog,
		Model:       h.model,
		Swap:        h.swap,
		Verifier:    verifier.New(unpublished{}, verifier.WithMaxAttempts(1), verifier.WithBackoff(0)),
	}, opts...)
	require.NoError(t, err)
	h.sched = graph.NewScheduler(g)
	return h
}

// turn appends a user message and runs the graph once, draining forks.
func (h *harness) turn(t *testing.T, st *domain.State, text string) *graph.Outcome {
	t.Helper()
	h.events.reset()
	if text != "" {
		st.Messages.Append(domain.Message{Role: domain.RoleUser, Content: text})
	}
	out, err := h.sched.Run(context.Background(), st, h.events)
	require.NoError(t, err)
	require.NoError(t, out.Forks.Wait(context.Background()))
	require.NoError(t, st.Validate())
	return out
}
