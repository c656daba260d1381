package domain

import (
	"slices"
	"time"
)

// Intent is the classification of a user turn.
type Intent string

const (
	IntentQuestion   Intent = "question"
	IntentDiscover   Intent = "discover_causes"
	IntentOperations Intent = "operations"
)

// Valid reports whether the intent is one of the known values.
func (i Intent) Valid() bool {
	switch i {
	case IntentQuestion, IntentDiscover, IntentOperations:
		return true
	}
	return false
}

// DefaultSourceToken is the token donors pay with.
const DefaultSourceToken = "ZEC"

// Flags control routing between nodes.
type Flags struct {
	VerifyingDonation      bool `json:"verifying_donation"`
	UpdatingRefundAddress  bool `json:"updating_refund_address"`
	AwaitingCauseSelection bool `json:"awaiting_cause_selection"`
	RequiresUserInput      bool `json:"requires_user_input"`
	// Errored is transient and reset at the beginning of every turn.
	Errored bool `json:"errored"`
}

// Slots are the structured fields parsed from the latest user turn.
type Slots struct {
	Amount   *float64 `json:"amount,omitempty"`
	Query    string   `json:"text_query,omitempty"`
	Location string   `json:"location,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// SwapContext accumulates the resolve and quote pipeline.
type SwapContext struct {
	SourceToken      string `json:"source_token"`
	OriginAsset      string `json:"origin_asset_id,omitempty"`
	DestinationAsset string `json:"destination_asset_id,omitempty"`
	// Amount is the decimal amount in the source token, as text.
	Amount         string `json:"amount,omitempty"`
	RefundAddress  string `json:"refund_address,omitempty"`
	DepositAddress string `json:"deposit_address,omitempty"`
	DepositMemo    string `json:"deposit_memo,omitempty"`
	Quote          *Quote `json:"quote,omitempty"`
	// DonationID is set once the donation for this deposit is recorded.
	DonationID string `json:"donation_id,omitempty"`
}

// Resolved reports whether both asset ids are known. Other swap fields are
// only meaningful once this holds.
func (s SwapContext) Resolved() bool {
	return s.OriginAsset != "" && s.DestinationAsset != ""
}

// PollState tracks the settlement polling loop.
type PollState struct {
	// Cycle numbers verification requests; a loop from an older cycle stops.
	Cycle   int64  `json:"cycle"`
	Retries int    `json:"retries"`
	Status  string `json:"status,omitempty"`
}

// Terminal reports whether polling has reached a final status.
func (p PollState) Terminal() bool {
	return p.Status == StatusSuccess || p.Status == StatusTimeout
}

// ErrorInfo is the last recoverable failure recorded by a node.
type ErrorInfo struct {
	Type    string `json:"error_type"`
	Message string `json:"error"`
}

// State is the per-session record threaded through every node.
type State struct {
	SessionID string `json:"session_id"`
	// Version increases on every successful save.
	Version int64 `json:"version"`

	Messages *MessageLog `json:"messages"`
	Flags    Flags       `json:"flags"`

	Intent     Intent  `json:"intent,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Slots      Slots   `json:"slots"`

	// Interests are user preferences forwarded to the ranking collaborator.
	Interests []string `json:"user_interests,omitempty"`
	// RequestedCauseID triggers a direct lookup that skips classification.
	RequestedCauseID string `json:"cause_id,omitempty"`

	Candidates    []Cause `json:"cause_candidates,omitempty"`
	SelectedCause *Cause  `json:"selected_cause,omitempty"`

	Swap      SwapContext `json:"swap"`
	Poll      PollState   `json:"poll"`
	LastError *ErrorInfo  `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Sealed holds the encrypted record when the state is a storage envelope.
	// Every other conversational field of an envelope is blank.
	Sealed string `json:"sealed,omitempty"`
}

// NewState creates the initial record for a session.
func NewState(sessionID string) *State {
	now := time.Now().UTC()
	return &State{
		SessionID: sessionID,
		Messages:  NewMessageLog(),
		Swap:      SwapContext{SourceToken: DefaultSourceToken},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OfferCandidates stores a ranked candidate list and waits for a selection.
// Any previous selection is dropped.
func (s *State) OfferCandidates(causes []Cause) {
	s.Candidates = causes
	s.SelectedCause = nil
	s.Flags.AwaitingCauseSelection = len(causes) > 0
}

// SelectCause records the chosen cause and clears the pending selection.
func (s *State) SelectCause(c Cause) {
	s.SelectedCause = &c
	s.Candidates = nil
	s.Flags.AwaitingCauseSelection = false
	s.Intent = IntentOperations
}

// Fail records a recoverable node failure.
func (s *State) Fail(errType, msg string) {
	s.Flags.Errored = true
	s.LastError = &ErrorInfo{Type: errType, Message: msg}
}

// Validate checks the record invariants. It is called on load and save boundaries.
func (s *State) Validate() error {
	if s.SessionID == "" {
		return &StateError{Reason: "missing session id"}
	}
	if s.Messages == nil {
		return &StateError{Reason: "missing message log"}
	}
	if s.Intent != "" && !s.Intent.Valid() {
		return &StateError{Reason: "unknown intent " + string(s.Intent)}
	}
	if s.Flags.AwaitingCauseSelection && s.SelectedCause != nil {
		return &StateError{Reason: "cause selection pending while a cause is selected"}
	}
	if s.Poll.Retries < 0 {
		return &StateError{Reason: "negative poll retries"}
	}
	return nil
}

// Clone returns a deep copy that shares no mutable memory with s.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	if s.Messages != nil {
		c.Messages = s.Messages.Clone()
	}
	if s.Slots.Amount != nil {
		amount := *s.Slots.Amount
		c.Slots.Amount = &amount
	}
	c.Slots.Tags = slices.Clone(s.Slots.Tags)
	c.Interests = slices.Clone(s.Interests)
	if s.Candidates != nil {
		c.Candidates = make([]Cause, len(s.Candidates))
		for i, cand := range s.Candidates {
			cand.Tags = slices.Clone(cand.Tags)
			c.Candidates[i] = cand
		}
	}
	if s.SelectedCause != nil {
		sel := *s.SelectedCause
		sel.Tags = slices.Clone(sel.Tags)
		c.SelectedCause = &sel
	}
	if s.Swap.Quote != nil {
		q := *s.Swap.Quote
		q.Raw = slices.Clone(q.Raw)
		c.Swap.Quote = &q
	}
	if s.LastError != nil {
		e := *s.LastError
		c.LastError = &e
	}
	return &c
}
