package domain

import (
	"context"
	"time"
)

// EventType defines the category of an output stream event.
type EventType string

const (
	EventStatus        EventType = "status"
	EventStep          EventType = "step"
	EventContent       EventType = "content"
	EventVerification  EventType = "verification"
	EventError         EventType = "error"
	EventPaymentStatus EventType = "payment_status"
	EventEnd           EventType = "end"
)

// Event is one fragment of the output stream.
type Event struct {
	Type    EventType `json:"type"`
	Node    string    `json:"node,omitempty"`
	Message string    `json:"message,omitempty"`
	Content string    `json:"content,omitempty"`
	Proof   *Proof    `json:"proof,omitempty"`
	Data    any       `json:"data,omitempty"`
}

// Emitter receives output stream events.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// EmitterFunc adapts a function to an Emitter.
type EmitterFunc func(ctx context.Context, ev Event)

func (f EmitterFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	SessionID string        `json:"session_id"`
	NodeID    string        `json:"node_id"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       error         `json:"-"`
}

// ForkEvent represents the completion of a side task.
type ForkEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	SessionID string        `json:"session_id"`
	Fork      string        `json:"fork"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// TurnEvent summarizes one completed turn, including its polling re-entries.
type TurnEvent struct {
	Timestamp time.Time     `json:"timestamp"`
	SessionID string        `json:"session_id"`
	Duration  time.Duration `json:"duration"`
	Reentries int           `json:"reentries"`
	Err       error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter    func(context.Context, *NodeEvent)
	OnNodeLeave    func(context.Context, *NodeEvent)
	OnForkComplete func(context.Context, *ForkEvent)
	OnVerification func(context.Context, *Proof)
	OnPollCycle    func(ctx context.Context, status string, retries int)
	OnTurnEnd      func(context.Context, *TurnEvent)
}
