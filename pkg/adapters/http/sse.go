package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/0x-stone/zspa/pkg/domain"
)

const (
	msgConnected = "NEAR AI Agent connected (TEE-verified)..."
	msgComplete  = "Response Complete (All verifications emitted)"
)

// frame is the wire shape of one stream event.
type frame struct {
	Type    domain.EventType  `json:"type"`
	Message string            `json:"message,omitempty"`
	Step    string            `json:"step,omitempty"`
	Node    string            `json:"node,omitempty"`
	Content string            `json:"content,omitempty"`
	Proof   *domain.Proof     `json:"proof,omitempty"`
	Error   *domain.ErrorInfo `json:"error,omitempty"`
	Status  string            `json:"status,omitempty"`
}

// frames maps an event to the frames presenting it. The end marker becomes
// the completion status; the caller writes the terminator.
func frames(ev domain.Event) []frame {
	switch ev.Type {
	case domain.EventStep:
		return []frame{{Type: ev.Type, Step: ev.Node, Message: ev.Message}}
	case domain.EventContent:
		if ev.Content == "" {
			return nil
		}
		return []frame{{Type: ev.Type, Content: ev.Content, Node: ev.Node}}
	case domain.EventVerification:
		if ev.Proof == nil {
			return nil
		}
		return []frame{
			{Type: ev.Type, Proof: ev.Proof},
			{Type: domain.EventStatus, Message: verdict(ev.Proof)},
		}
	case domain.EventError:
		if ev.Content != "" {
			var info domain.ErrorInfo
			if err := json.Unmarshal([]byte(ev.Content), &info); err != nil {
				return nil
			}
			return []frame{{Type: ev.Type, Error: &info}}
		}
		return []frame{{Type: ev.Type, Message: ev.Message}}
	case domain.EventPaymentStatus:
		var payload domain.StatusPayload
		if err := json.Unmarshal([]byte(ev.Content), &payload); err != nil {
			return nil
		}
		return []frame{{Type: ev.Type, Status: payload.Status, Message: payload.Message}}
	case domain.EventEnd:
		return []frame{{Type: domain.EventStatus, Message: msgComplete}}
	}
	return []frame{{Type: ev.Type, Message: ev.Message, Node: ev.Node}}
}

func verdict(p *domain.Proof) string {
	node := p.Node
	if node == "" {
		node = "unknown"
	}
	if p.Verified {
		return fmt.Sprintf("verified TEE Verification for %s: PASSED", node)
	}
	return fmt.Sprintf("not verified TEE Verification for %s: FAILED", node)
}

// stream writes events as Server-Sent Events and flushes after each one.
// The runtime serializes Emit calls.
type stream struct {
	w       io.Writer
	flusher http.Flusher
	logger  *slog.Logger
	failed  bool
}

func (s *stream) Emit(_ context.Context, ev domain.Event) {
	for _, f := range frames(ev) {
		body, err := json.Marshal(f)
		if err != nil {
			s.logger.Warn("SSE: Failed to encode frame", "type", f.Type, "err", err)
			continue
		}
		s.write("data: " + string(body) + "\n\n")
	}
	if ev.Type == domain.EventEnd {
		s.write("data: [DONE]\n\n")
	}
}

func (s *stream) write(chunk string) {
	if s.failed {
		return
	}
	if _, err := io.WriteString(s.w, chunk); err != nil {
		// The client went away; the request context cancels the turn.
		s.failed = true
		s.logger.Debug("SSE: Client write failed", "err", err)
		return
	}
	s.flusher.Flush()
}
