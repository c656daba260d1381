package graph

import (
	"errors"
	"fmt"
	"strings"
)

// BuildError aggregates graph validation failures.
type BuildError struct {
	Errs []error
}

func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return "invalid graph: " + strings.Join(msgs, "; ")
}

func (e *BuildError) Unwrap() []error { return e.Errs }

// NodeError wraps an error returned by a node.
type NodeError struct {
	Node string
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

// NodePanicError is produced when a node panics.
type NodePanicError struct {
	Node  string
	Value any
	Stack []byte
}

func (e *NodePanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.Node, e.Value)
}

// StepLimitError is returned when an invocation exceeds its step budget.
type StepLimitError struct {
	Limit int
	Path  []string
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("step limit %d exceeded: %s", e.Limit, strings.Join(e.Path, " -> "))
}

// ErrUnknownTarget is returned when routing names a node that does not exist.
var ErrUnknownTarget = errors.New("unknown routing target")
