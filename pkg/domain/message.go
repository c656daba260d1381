package domain

import (
	"encoding/json"
	"strings"
	"sync"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Tool message names understood by the presentation layer.
const (
	ToolVerificationProof = "verification_proof"
	ToolErrorOccurred     = "error_occurred"
	ToolPaymentStatus     = "payment_status"
)

// Message is a single turn in the conversation.
type Message struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	// Node is the graph node that produced the message, if any.
	Node string `json:"node,omitempty"`
	// Async marks messages appended by a side task rather than by the main flow.
	Async bool `json:"async,omitempty"`
}

// MessageLog is an ordered, append-only message sequence.
// Appends from side tasks and the main flow may happen concurrently.
type MessageLog struct {
	mu      sync.RWMutex
	entries []Message
}

// NewMessageLog creates a log seeded with the given messages.
func NewMessageLog(msgs ...Message) *MessageLog {
	l := &MessageLog{}
	l.entries = append(l.entries, msgs...)
	return l
}

// Append adds messages to the end of the log and returns the index of the first one.
func (l *MessageLog) Append(msgs ...Message) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := len(l.entries)
	l.entries = append(l.entries, msgs...)
	return start
}

// Len returns the number of messages.
func (l *MessageLog) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot returns a copy of every message.
func (l *MessageLog) Snapshot() []Message {
	return l.Since(0)
}

// Since returns a copy of the messages at index i and later.
func (l *MessageLog) Since(i int) []Message {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 {
		i = 0
	}
	if i >= len(l.entries) {
		return nil
	}
	out := make([]Message, len(l.entries)-i)
	copy(out, l.entries[i:])
	return out
}

// LastUserMessage returns the content of the most recent user turn.
func (l *MessageLog) LastUserMessage() string {
	if l == nil {
		return ""
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Role == RoleUser {
			return l.entries[i].Content
		}
	}
	return ""
}

// Find returns the last message matching the tool name and call id.
func (l *MessageLog) Find(name, toolCallID string) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		m := l.entries[i]
		if m.Name == name && m.ToolCallID == toolCallID {
			return m, true
		}
	}
	return Message{}, false
}

// Clone returns an independent copy of the log.
func (l *MessageLog) Clone() *MessageLog {
	return NewMessageLog(l.Snapshot()...)
}

func (l *MessageLog) MarshalJSON() ([]byte, error) {
	msgs := l.Snapshot()
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(msgs)
}

func (l *MessageLog) UnmarshalJSON(data []byte) error {
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = msgs
	return nil
}

// Placeholders substituted for payloads the model should not see again.
const (
	CauseListPlaceholder = "These are available causes: please select one"
	DepositPlaceholder   = "Deposit into this address to complete your donation"
)

// Redact replaces previously emitted cause-list and deposit-instruction
// payloads with short placeholders. Other content is returned unchanged.
func Redact(content string) string {
	if strings.Contains(content, `"type":"`+PayloadCauseList+`"`) ||
		strings.Contains(content, `"type": "`+PayloadCauseList+`"`) {
		return CauseListPlaceholder
	}
	if strings.Contains(content, `"quote":`) && strings.Contains(content, `"deposit_addr":`) {
		return DepositPlaceholder
	}
	return content
}
