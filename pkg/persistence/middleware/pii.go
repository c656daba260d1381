package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/ports"
)

// DefaultPIIPatterns match the state fields holding donor wallet data.
var DefaultPIIPatterns = []string{`^refund_address$`, `^deposit_memo$`}

const mask = "***"

type piiMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks, on save, the values of
// state fields whose JSON key matches one of the patterns. Message contents
// are redacted with domain.Redact. It is meant for audit copies: a masked
// record cannot resume a swap.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PII pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.StateStore) ports.StateStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, state *domain.State) error {
	// Work on a generic copy so the in-memory state used by the graph is untouched.
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}
	maskValue(generic, m.patterns)

	raw, err = json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("failed to marshal masked state: %w", err)
	}
	var masked domain.State
	if err := json.Unmarshal(raw, &masked); err != nil {
		return fmt.Errorf("failed to decode masked state: %w", err)
	}
	redactMessages(&masked)

	if err := m.next.Save(ctx, sessionID, &masked); err != nil {
		return err
	}
	state.Version = masked.Version
	return nil
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func maskValue(v any, patterns []*regexp.Regexp) {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if matchesAny(k, patterns) {
				if s, ok := child.(string); ok && s == "" {
					continue
				}
				node[k] = mask
				continue
			}
			maskValue(child, patterns)
		}
	case []any:
		for _, child := range node {
			maskValue(child, patterns)
		}
	}
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

func redactMessages(st *domain.State) {
	if st.Messages == nil {
		return
	}
	msgs := st.Messages.Snapshot()
	for i := range msgs {
		msgs[i].Content = domain.Redact(msgs[i].Content)
	}
	st.Messages = domain.NewMessageLog(msgs...)
}
