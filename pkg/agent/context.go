package agent

import (
	"strings"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/ports"
)

// History renders the conversation for use as prompt context. Tool messages
// are dropped and known payloads are replaced with short placeholders.
func History(msgs []domain.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		var label string
		switch m.Role {
		case domain.RoleUser:
			label = "Human"
		case domain.RoleAssistant:
			label = "AI"
		default:
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(domain.Redact(m.Content))
	}
	return b.String()
}

func system(content string) ports.ChatMessage {
	return ports.ChatMessage{Role: string(domain.RoleSystem), Content: content}
}

func user(content string) ports.ChatMessage {
	return ports.ChatMessage{Role: string(domain.RoleUser), Content: content}
}
