// Package inference issues structured chat completions: the declared schema is
// injected into the prompt, and the reply is cleaned, validated and decoded.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/0x-stone/zspa/pkg/ports"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/mitchellh/mapstructure"
)

// ErrSchemaMismatch is wrapped by ParseError when the reply is valid JSON of the wrong shape.
var ErrSchemaMismatch = errors.New("response does not match schema")

// ParseError is returned when the model output cannot be turned into the declared shape.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model response: %v (raw: %q)", e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

const schemaRules = `
CRITICAL RULES:
- Return ONLY valid JSON, no markdown, no explanations, no preamble
- Do NOT wrap in ` + "```json```" + ` or ` + "```" + ` blocks
- Ensure all required fields are present
- Match the exact field names and types from the schema exactly
`

// Instruction renders the schema directive appended to the system prompt.
func Instruction(schema *openapi3.Schema) (string, error) {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render schema: %w", err)
	}
	return "\nYou must respond with valid JSON matching this exact schema:\n" + string(data) + "\n" + schemaRules, nil
}

// WithSchema returns a copy of messages where the last system message carries
// the schema instruction. A system message is prepended when none exists.
func WithSchema(messages []ports.ChatMessage, schema *openapi3.Schema) ([]ports.ChatMessage, error) {
	instruction, err := Instruction(schema)
	if err != nil {
		return nil, err
	}
	out := make([]ports.ChatMessage, len(messages))
	copy(out, messages)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == "system" {
			out[i].Content += instruction
			return out, nil
		}
	}
	return append([]ports.ChatMessage{{Role: "system", Content: instruction}}, out...), nil
}

// StripFences removes a surrounding markdown code fence, if present.
func StripFences(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		parts := strings.Split(s, "```")
		if len(parts) > 1 {
			s = strings.TrimSpace(parts[1])
		}
	}
	s = strings.TrimPrefix(s, "json")
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// Decode validates raw model output against schema and decodes it into out.
func Decode(raw string, schema *openapi3.Schema, out any) error {
	cleaned := StripFences(raw)

	var value any
	if err := json.Unmarshal([]byte(cleaned), &value); err != nil {
		return &ParseError{Raw: cleaned, Err: err}
	}
	if err := schema.VisitJSON(value); err != nil {
		return &ParseError{Raw: cleaned, Err: fmt.Errorf("%w: %v", ErrSchemaMismatch, err)}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(value); err != nil {
		return &ParseError{Raw: cleaned, Err: fmt.Errorf("%w: %v", ErrSchemaMismatch, err)}
	}
	return nil
}

// Invoke performs a structured completion and decodes the reply into T.
// The Completion is returned even when decoding fails so the call can still be verified.
func Invoke[T any](ctx context.Context, model ports.ChatModel, messages []ports.ChatMessage, schema *openapi3.Schema) (T, ports.Completion, error) {
	var out T
	enhanced, err := WithSchema(messages, schema)
	if err != nil {
		return out, ports.Completion{}, err
	}
	completion, err := model.Complete(ctx, enhanced)
	if err != nil {
		return out, completion, err
	}
	if err := Decode(completion.Content, schema, &out); err != nil {
		return out, completion, err
	}
	return out, completion, nil
}
