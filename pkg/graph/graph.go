package graph

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/0x-stone/zspa/pkg/domain"
)

// End is the terminal marker.
const End = "__end__"

// NodeFunc executes one step. It may mutate the state in place. A nil
// Command follows the static edge or router registered for the node.
type NodeFunc func(ctx context.Context, st *domain.State) (*Command, error)

// ForkFunc is a side task. Returned messages are appended to the session log.
type ForkFunc func(ctx context.Context, payload any) ([]domain.Message, error)

// Router picks the next node from state alone. It must be deterministic and
// free of side effects.
type Router func(st *domain.State) string

// Send spawns a fork with a payload.
type Send struct {
	Fork    string
	Payload any
}

// Command overrides the default routing of a node.
type Command struct {
	// Goto names the next node. Empty means use the edge or router.
	Goto string
	// Sends are spawned in order and never awaited by the scheduler.
	Sends []Send
	// After, when positive, ends this invocation and asks the caller to
	// re-enter at Goto once the delay has elapsed.
	After time.Duration
}

// Goto returns a Command jumping to node.
func Goto(node string) *Command {
	return &Command{Goto: node}
}

// Spawn returns a Command that only spawns a fork.
func Spawn(fork string, payload any) *Command {
	return &Command{Sends: []Send{{Fork: fork, Payload: payload}}}
}

// WithSend appends a fork to the command.
func (c *Command) WithSend(fork string, payload any) *Command {
	c.Sends = append(c.Sends, Send{Fork: fork, Payload: payload})
	return c
}

// Edge describes a connection for inspection and rendering.
type Edge struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Conditional bool   `json:"conditional"`
}

// Graph is an immutable, validated node graph.
type Graph struct {
	entry  string
	order  []string
	nodes  map[string]NodeFunc
	forks  map[string]ForkFunc
	edges  map[string]string
	routes map[string]route
}

type route struct {
	fn      Router
	targets map[string]bool
	order   []string
}

// Entry returns the entry node name.
func (g *Graph) Entry() string { return g.entry }

// Nodes returns node names in registration order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Forks returns the registered fork names, sorted.
func (g *Graph) Forks() []string {
	out := make([]string, 0, len(g.forks))
	for name := range g.forks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasNode reports whether name is a node of the graph.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Edges lists static and conditional edges in node order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, from := range g.order {
		if r, ok := g.routes[from]; ok {
			for _, to := range r.order {
				out = append(out, Edge{From: from, To: to, Conditional: true})
			}
			continue
		}
		to, ok := g.edges[from]
		if !ok {
			to = End
		}
		out = append(out, Edge{From: from, To: to})
	}
	return out
}

// Builder assembles a Graph. Errors are collected and reported by Build.
type Builder struct {
	g    *Graph
	errs []error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{g: &Graph{
		nodes:  make(map[string]NodeFunc),
		forks:  make(map[string]ForkFunc),
		edges:  make(map[string]string),
		routes: make(map[string]route),
	}}
}

func (b *Builder) fail(format string, args ...any) *Builder {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
	return b
}

func (b *Builder) taken(name string) bool {
	_, node := b.g.nodes[name]
	_, fork := b.g.forks[name]
	return node || fork || name == End
}

// Node registers a step.
func (b *Builder) Node(name string, fn NodeFunc) *Builder {
	if name == "" || fn == nil {
		return b.fail("node %q: name and function are required", name)
	}
	if b.taken(name) {
		return b.fail("node %q registered twice", name)
	}
	b.g.nodes[name] = fn
	b.g.order = append(b.g.order, name)
	return b
}

// Fork registers a side task.
func (b *Builder) Fork(name string, fn ForkFunc) *Builder {
	if name == "" || fn == nil {
		return b.fail("fork %q: name and function are required", name)
	}
	if b.taken(name) {
		return b.fail("fork %q registered twice", name)
	}
	b.g.forks[name] = fn
	return b
}

// Edge adds a static transition.
func (b *Builder) Edge(from, to string) *Builder {
	if _, ok := b.g.routes[from]; ok {
		return b.fail("node %q already has a router", from)
	}
	b.g.edges[from] = to
	return b
}

// Route adds a conditional transition. The router may only return one of targets.
func (b *Builder) Route(from string, fn Router, targets ...string) *Builder {
	if fn == nil || len(targets) == 0 {
		return b.fail("route from %q: router and targets are required", from)
	}
	if _, ok := b.g.edges[from]; ok {
		return b.fail("node %q already has a static edge", from)
	}
	r := route{fn: fn, targets: make(map[string]bool, len(targets))}
	for _, t := range targets {
		if !r.targets[t] {
			r.order = append(r.order, t)
		}
		r.targets[t] = true
	}
	b.g.routes[from] = r
	return b
}

// Entry sets the start node.
func (b *Builder) Entry(name string) *Builder {
	b.g.entry = name
	return b
}

// Build validates the graph.
func (b *Builder) Build() (*Graph, error) {
	g := b.g
	errs := append([]error(nil), b.errs...)
	if g.entry == "" {
		errs = append(errs, fmt.Errorf("entry node is not set"))
	} else if !g.HasNode(g.entry) {
		errs = append(errs, fmt.Errorf("entry node %q is not registered", g.entry))
	}
	known := func(name string) bool { return name == End || g.HasNode(name) }
	for from, to := range g.edges {
		if !g.HasNode(from) {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}
		if !known(to) {
			errs = append(errs, fmt.Errorf("edge %q -> %q targets an unknown node", from, to))
		}
	}
	for from, r := range g.routes {
		if !g.HasNode(from) {
			errs = append(errs, fmt.Errorf("route from unknown node %q", from))
		}
		for _, to := range r.order {
			if !known(to) {
				errs = append(errs, fmt.Errorf("route %q -> %q targets an unknown node", from, to))
			}
		}
	}
	if len(errs) > 0 {
		return nil, &BuildError{Errs: errs}
	}
	return g, nil
}
