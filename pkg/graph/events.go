package graph

import (
	"encoding/json"
	"strings"

	"github.com/0x-stone/zspa/pkg/domain"
)

// StepMessage renders the progress line emitted after a node completes.
func StepMessage(node string) string {
	words := strings.FieldsFunc(node, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return "Completed: " + strings.Join(words, " ")
}

// MessageEvent maps a log entry to the output event presenting it.
// User and unknown tool messages have no event.
func MessageEvent(m domain.Message, node string) (domain.Event, bool) {
	if m.Node != "" {
		node = m.Node
	}
	switch m.Role {
	case domain.RoleAssistant:
		return domain.Event{Type: domain.EventContent, Node: node, Content: m.Content}, true
	case domain.RoleTool:
		switch m.Name {
		case domain.ToolVerificationProof:
			var proof domain.Proof
			if err := json.Unmarshal([]byte(m.Content), &proof); err != nil {
				return domain.Event{}, false
			}
			return domain.Event{Type: domain.EventVerification, Node: proof.Node, Proof: &proof}, true
		case domain.ToolErrorOccurred:
			return domain.Event{Type: domain.EventError, Node: node, Content: m.Content}, true
		case domain.ToolPaymentStatus:
			var payload domain.StatusPayload
			_ = json.Unmarshal([]byte(m.Content), &payload)
			return domain.Event{Type: domain.EventPaymentStatus, Node: node, Content: m.Content, Message: payload.Message}, true
		}
	}
	return domain.Event{}, false
}
