package inference_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/0x-stone/zspa/pkg/inference"
	"github.com/0x-stone/zspa/pkg/ports"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type classification struct {
	Intent     string  `json:"intent_type"`
	Confidence float64 `json:"confidence"`
}

func classificationSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("intent_type", openapi3.NewStringSchema().WithEnum("question", "discover_causes", "operations")).
		WithProperty("confidence", openapi3.NewFloat64Schema()).
		WithRequired([]string{"intent_type", "confidence"})
}

type stubModel struct {
	reply string
	err   error
	seen  []ports.ChatMessage
}

func (m *stubModel) Complete(ctx context.Context, messages []ports.ChatMessage) (ports.Completion, error) {
	m.seen = messages
	if m.err != nil {
		return ports.Completion{}, m.err
	}
	return ports.Completion{Content: m.reply, ChatID: "chat-1", RequestHash: "rq", ResponseHash: "rs"}, nil
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, inference.StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, inference.StripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, inference.StripFences(`  {"a":1} `))
}

func TestInvoke_DecodesValidReply(t *testing.T) {
	model := &stubModel{reply: "```json\n{\"intent_type\":\"discover_causes\",\"confidence\":0.9}\n```"}
	msgs := []ports.ChatMessage{
		{Role: "system", Content: "Classify."},
		{Role: "user", Content: "I want to donate to ocean cleanup"},
	}

	got, completion, err := inference.Invoke[classification](context.Background(), model, msgs, classificationSchema())
	require.NoError(t, err)
	assert.Equal(t, "discover_causes", got.Intent)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, "chat-1", completion.ChatID)

	require.Len(t, model.seen, 2)
	assert.True(t, strings.HasPrefix(model.seen[0].Content, "Classify."))
	assert.Contains(t, model.seen[0].Content, "Return ONLY valid JSON")
	assert.Contains(t, model.seen[0].Content, `"intent_type"`)
	assert.Equal(t, "Classify.", msgs[0].Content, "caller messages must not be mutated")
}

func TestInvoke_InvalidJSONIsParseError(t *testing.T) {
	model := &stubModel{reply: "I think it's a question"}
	_, completion, err := inference.Invoke[classification](context.Background(), model, nil, classificationSchema())

	var parseErr *inference.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.NotErrorIs(t, err, inference.ErrSchemaMismatch)
	assert.Equal(t, "chat-1", completion.ChatID, "completion is returned for verification")
}

func TestInvoke_WrongShapeIsSchemaMismatch(t *testing.T) {
	model := &stubModel{reply: `{"intent_type":"shopping","confidence":0.4}`}
	_, _, err := inference.Invoke[classification](context.Background(), model, nil, classificationSchema())
	assert.ErrorIs(t, err, inference.ErrSchemaMismatch)

	model = &stubModel{reply: `{"confidence":0.4}`}
	_, _, err = inference.Invoke[classification](context.Background(), model, nil, classificationSchema())
	assert.ErrorIs(t, err, inference.ErrSchemaMismatch)
}

func TestInvoke_PrependsSystemMessageWhenMissing(t *testing.T) {
	model := &stubModel{reply: `{"intent_type":"question","confidence":1}`}
	_, _, err := inference.Invoke[classification](context.Background(), model,
		[]ports.ChatMessage{{Role: "user", Content: "hi"}}, classificationSchema())
	require.NoError(t, err)
	require.Len(t, model.seen, 2)
	assert.Equal(t, "system", model.seen[0].Role)
}

func TestInvoke_TransportErrorPassesThrough(t *testing.T) {
	boom := errors.New("connection reset")
	_, _, err := inference.Invoke[classification](context.Background(), &stubModel{err: boom}, nil, classificationSchema())
	assert.ErrorIs(t, err, boom)
}

func TestDecode_NullableFields(t *testing.T) {
	type slots struct {
		Amount *float64 `json:"amount"`
		Query  *string  `json:"text_query"`
	}
	schema := openapi3.NewObjectSchema().
		WithProperty("amount", openapi3.NewFloat64Schema().WithNullable()).
		WithProperty("text_query", openapi3.NewStringSchema().WithNullable())

	var s slots
	require.NoError(t, inference.Decode(`{"amount":6.0,"text_query":null}`, schema, &s))
	require.NotNil(t, s.Amount)
	assert.Equal(t, 6.0, *s.Amount)
	assert.Nil(t, s.Query)
}
