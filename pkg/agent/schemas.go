package agent

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/0x-stone/zspa/pkg/domain"
)

// IntentClassification is the structured output of classify_intent.
type IntentClassification struct {
	Intent     domain.Intent `json:"intent_type"`
	Confidence float64       `json:"confidence"`
}

// CauseIntent is the structured output of parse_intent.
type CauseIntent struct {
	SourceToken string   `json:"source_token"`
	Amount      *float64 `json:"amount"`
	Query       *string  `json:"text_query"`
	Location    *string  `json:"location"`
	Tags        []string `json:"tags"`
}

// IntentSchema declares the shape of IntentClassification.
func IntentSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("intent_type", openapi3.NewStringSchema().
			WithEnum(string(domain.IntentQuestion), string(domain.IntentDiscover), string(domain.IntentOperations))).
		WithProperty("confidence", openapi3.NewFloat64Schema().WithMin(0).WithMax(1)).
		WithRequired([]string{"intent_type", "confidence"})
}

// CauseIntentSchema declares the shape of CauseIntent.
func CauseIntentSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("source_token", openapi3.NewStringSchema().WithNullable()).
		WithProperty("amount", openapi3.NewFloat64Schema().WithNullable()).
		WithProperty("text_query", openapi3.NewStringSchema().WithNullable()).
		WithProperty("location", openapi3.NewStringSchema().WithNullable()).
		WithProperty("tags", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()).WithNullable())
}
