package verifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
)

// ToolCallID returns the tool call id under which a chat's proof is logged.
func ToolCallID(chatID string) string {
	return "verify_" + chatID
}

// Fork adapts the verifier to a graph side task. The payload must be a
// domain.InferenceReceipt; the proof is returned as a tool message.
func (v *Verifier) Fork() graph.ForkFunc {
	return func(ctx context.Context, payload any) ([]domain.Message, error) {
		var receipt domain.InferenceReceipt
		switch p := payload.(type) {
		case domain.InferenceReceipt:
			receipt = p
		case *domain.InferenceReceipt:
			if p == nil {
				return nil, fmt.Errorf("verification fork: nil receipt")
			}
			receipt = *p
		default:
			return nil, fmt.Errorf("verification fork: unexpected payload %T", payload)
		}

		proof := v.Verify(ctx, receipt)
		body, err := json.Marshal(proof)
		if err != nil {
			return nil, fmt.Errorf("encode proof: %w", err)
		}
		return []domain.Message{{
			Role:       domain.RoleTool,
			Name:       domain.ToolVerificationProof,
			ToolCallID: ToolCallID(receipt.ChatID),
			Content:    string(body),
			Node:       receipt.OriginNode,
		}}, nil
	}
}
