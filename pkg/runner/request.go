package runner

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/0x-stone/zspa/pkg/domain"
)

// ErrMissingSessionID is returned for a turn without a session id.
var ErrMissingSessionID = errors.New("session id is required")

// TurnRequest is one inbound donor turn.
type TurnRequest struct {
	Message       string   `json:"message"`
	SessionID     string   `json:"session_id"`
	RefundAddress string   `json:"refund_address"`
	UserInterests []string `json:"user_interests"`
	// VerifyDonation starts a fresh settlement polling cycle.
	VerifyDonation bool   `json:"verify_donation"`
	CauseID        string `json:"cause_id"`
	// UpdateRefundAddress acknowledges a refund address change.
	UpdateRefundAddress bool `json:"update_shielded_address"`
}

// Validate checks the request and sanitizes the message in place.
func (r *TurnRequest) Validate(maxInput int) error {
	if r.SessionID == "" {
		return ErrMissingSessionID
	}
	msg, err := SanitizeInput(r.Message, maxInput)
	if err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	r.Message = msg
	return nil
}

// Apply merges the request into the session state. The refund address,
// interests, requested cause and both mode flags are overwritten on every turn.
func (r TurnRequest) Apply(st *domain.State) {
	st.Flags.Errored = false
	st.LastError = nil

	st.Swap.RefundAddress = r.RefundAddress
	st.Interests = slices.Clone(r.UserInterests)
	st.RequestedCauseID = r.CauseID
	st.Flags.VerifyingDonation = r.VerifyDonation
	st.Flags.UpdatingRefundAddress = r.UpdateRefundAddress
	if r.VerifyDonation {
		st.Poll = domain.PollState{Cycle: st.Poll.Cycle + 1}
	}

	if r.Message != "" {
		st.Messages.Append(domain.Message{
			ID:      uuid.NewString(),
			Role:    domain.RoleUser,
			Content: r.Message,
		})
	}
	st.UpdatedAt = time.Now().UTC()
}
