// Package agent wires the donation conversation graph: intent nodes, cause
// discovery, swap quoting and settlement polling.
package agent

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/0x-stone/zspa/internal/logging"
	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
	"github.com/0x-stone/zspa/pkg/ports"
	"github.com/0x-stone/zspa/pkg/verifier"
)

// Node names.
const (
	NodeClassifyIntent    = "classify_intent"
	NodeParseIntent       = "parse_intent"
	NodeAnswerQuestion    = "answer_question"
	NodeCollectInfo       = "collect_info"
	NodeDiscoverCauses    = "discover_causes"
	NodeEndAddressUpdate  = "end_address_update"
	NodeResolveAssets     = "resolve_assets"
	NodeGenerateQuote     = "generate_quote"
	NodeFinalInstructions = "final_instructions"
	NodeNotifyOnError     = "notify_on_error"
	NodeVerifyDonation    = "verify_donation_node"

	ForkVerifyInference = "verify_inference_proof"
)

// Defaults for the settlement poller and the origin asset.
const (
	DefaultMaxPollRetries = 100
	DefaultPollInterval   = 36 * time.Second
	DefaultOriginSymbol   = domain.DefaultSourceToken
	DefaultOriginChain    = "zec"
)

// Deps are the collaborators the nodes call.
type Deps struct {
	Persistence ports.Persistence
	Search      ports.Search
	Model       ports.ChatModel
	Swap        ports.SwapProvider
	Verifier    *verifier.Verifier
}

func (d Deps) validate() error {
	var errs []error
	if d.Persistence == nil {
		errs = append(errs, errors.New("persistence is required"))
	}
	if d.Search == nil {
		errs = append(errs, errors.New("search is required"))
	}
	if d.Model == nil {
		errs = append(errs, errors.New("chat model is required"))
	}
	if d.Swap == nil {
		errs = append(errs, errors.New("swap provider is required"))
	}
	if d.Verifier == nil {
		errs = append(errs, errors.New("verifier is required"))
	}
	return errors.Join(errs...)
}

// Option configures the nodes.
type Option func(*agent)

// WithPolling sets the settlement poller budget and interval.
func WithPolling(maxRetries int, interval time.Duration) Option {
	return func(a *agent) {
		a.maxPollRetries = maxRetries
		a.pollInterval = interval
	}
}

// WithOriginAsset sets the token donors pay with.
func WithOriginAsset(symbol, chain string) Option {
	return func(a *agent) {
		a.originSymbol = symbol
		a.originChain = chain
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *agent) {
		a.logger = l
	}
}

// WithHooks registers callbacks. Only OnPollCycle is used here.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(a *agent) {
		a.hooks = h
	}
}

type agent struct {
	deps           Deps
	maxPollRetries int
	pollInterval   time.Duration
	originSymbol   string
	originChain    string
	logger         *slog.Logger
	hooks          domain.LifecycleHooks
}

// New builds the conversation graph.
func New(deps Deps, opts ...Option) (*graph.Graph, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	a := &agent{
		deps:           deps,
		maxPollRetries: DefaultMaxPollRetries,
		pollInterval:   DefaultPollInterval,
		originSymbol:   DefaultOriginSymbol,
		originChain:    DefaultOriginChain,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	return graph.NewBuilder().
		Node(NodeClassifyIntent, a.classifyIntent).
		Node(NodeParseIntent, a.parseIntent).
		Node(NodeAnswerQuestion, a.answerQuestion).
		Node(NodeCollectInfo, a.collectInfo).
		Node(NodeDiscoverCauses, a.discoverCauses).
		Node(NodeEndAddressUpdate, a.endAddressUpdate).
		Node(NodeResolveAssets, a.resolveAssets).
		Node(NodeGenerateQuote, a.generateQuote).
		Node(NodeFinalInstructions, a.finalInstructions).
		Node(NodeNotifyOnError, a.notifyOnError).
		Node(NodeVerifyDonation, a.checkDonationStatus).
		Fork(ForkVerifyInference, deps.Verifier.Fork()).
		Entry(NodeClassifyIntent).
		Route(NodeClassifyIntent, RouteAfterClassification,
			NodeResolveAssets, NodeEndAddressUpdate, NodeVerifyDonation, NodeAnswerQuestion, NodeParseIntent).
		Route(NodeParseIntent, RouteAfterParsing,
			NodeDiscoverCauses, NodeCollectInfo, NodeResolveAssets, graph.End).
		Edge(NodeResolveAssets, NodeGenerateQuote).
		Route(NodeGenerateQuote, RouteAfterQuote, NodeFinalInstructions, NodeNotifyOnError).
		Edge(NodeAnswerQuestion, graph.End).
		Edge(NodeCollectInfo, graph.End).
		Edge(NodeDiscoverCauses, graph.End).
		Edge(NodeEndAddressUpdate, graph.End).
		Edge(NodeFinalInstructions, graph.End).
		Edge(NodeNotifyOnError, graph.End).
		Edge(NodeVerifyDonation, graph.End).
		Build()
}

// verify spawns the verification fork for a completed inference call.
// Calls that never reached the backend have nothing to verify.
func verify(cmd *graph.Command, c ports.Completion, node string) *graph.Command {
	if c.ChatID == "" {
		return cmd
	}
	if cmd == nil {
		cmd = &graph.Command{}
	}
	return cmd.WithSend(ForkVerifyInference, c.Receipt(node))
}

func say(st *domain.State, node, content string) {
	st.Messages.Append(domain.Message{
		ID:      uuid.NewString(),
		Role:    domain.RoleAssistant,
		Content: content,
		Node:    node,
	})
}

func toolMessage(st *domain.State, node, name, callID, content string) {
	st.Messages.Append(domain.Message{
		ID:         uuid.NewString(),
		Role:       domain.RoleTool,
		Name:       name,
		ToolCallID: callID,
		Content:    content,
		Node:       node,
	})
}

// fail records a recoverable error and sends the flow to the notification node.
func fail(st *domain.State, errType string, err error) *graph.Command {
	st.Fail(errType, err.Error())
	return graph.Goto(NodeNotifyOnError)
}
