package domain

import (
	"encoding/json"
	"time"
)

// Cause is a fundraiser as returned by the persistence and search collaborators.
type Cause struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id,omitempty"`
	Title            string    `json:"title"`
	DisplayName      string    `json:"display_name"`
	ShortDescription string    `json:"short_description,omitempty"`
	LongDescription  string    `json:"long_description,omitempty"`
	WebsiteURL       string    `json:"website_url,omitempty"`
	ImageURL         string    `json:"image_url,omitempty"`
	Category         string    `json:"category,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	Country          string    `json:"country,omitempty"`
	City             string    `json:"city,omitempty"`
	TrustScore       float64   `json:"trust_score"`
	GoalAmount       float64   `json:"goal_amount,omitempty"`
	AmountRaised     float64   `json:"amount_raised"`
	Status           string    `json:"status,omitempty"`
	MatchScore       float64   `json:"match_score,omitempty"`
	PreferredChain   string    `json:"preferred_chain,omitempty"`
	PreferredToken   string    `json:"preferred_token,omitempty"`
	WalletAddress    string    `json:"wallet_address,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// CauseView is the public projection of a Cause. Routing and payout
// details are omitted.
type CauseView struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	DisplayName      string   `json:"display_name"`
	ShortDescription string   `json:"short_description,omitempty"`
	LongDescription  string   `json:"long_description,omitempty"`
	WebsiteURL       string   `json:"website_url,omitempty"`
	ImageURL         string   `json:"image_url,omitempty"`
	Category         string   `json:"category,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Country          string   `json:"country,omitempty"`
	City             string   `json:"city,omitempty"`
	TrustScore       float64  `json:"trust_score"`
	GoalAmount       float64  `json:"goal_amount,omitempty"`
	AmountRaised     float64  `json:"amount_raised"`
	MatchScore       float64  `json:"match_score,omitempty"`
}

// View returns the public projection of the cause.
func (c Cause) View() CauseView {
	return CauseView{
		ID:               c.ID,
		Title:            c.Title,
		DisplayName:      c.DisplayName,
		ShortDescription: c.ShortDescription,
		LongDescription:  c.LongDescription,
		WebsiteURL:       c.WebsiteURL,
		ImageURL:         c.ImageURL,
		Category:         c.Category,
		Tags:             c.Tags,
		Country:          c.Country,
		City:             c.City,
		TrustScore:       c.TrustScore,
		GoalAmount:       c.GoalAmount,
		AmountRaised:     c.AmountRaised,
		MatchScore:       c.MatchScore,
	}
}

// Completion returns the funded percentage, or 0 when no goal is set.
func (c Cause) Completion() int {
	if c.GoalAmount <= 0 {
		return 0
	}
	return int(c.AmountRaised / c.GoalAmount * 100)
}

// Validate rejects cause records the flow cannot work with.
func (c Cause) Validate() error {
	if c.ID == "" {
		return &ContractError{Record: "cause", Field: "id"}
	}
	if c.Title == "" {
		return &ContractError{Record: "cause", Field: "title"}
	}
	return nil
}

// SearchQuery carries the slots used to rank causes.
type SearchQuery struct {
	Text     string   `json:"text_query,omitempty"`
	Location string   `json:"location,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Donation is a confirmed, recorded contribution.
type Donation struct {
	ID           string    `json:"id"`
	FundraiserID string    `json:"fundraiser_id"`
	AmountNative float64   `json:"amount_zec"`
	AmountQuote  float64   `json:"amount"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// DonationConfirmed is the status written for settled donations.
const DonationConfirmed = "confirmed"

// Token is an entry of the swap provider's catalog.
type Token struct {
	Symbol   string  `json:"symbol"`
	Chain    string  `json:"blockchain"`
	AssetID  string  `json:"assetId"`
	Decimals int     `json:"decimals,omitempty"`
	Price    float64 `json:"price,omitempty"`
}

// QuoteRequest is the input of a swap quote.
type QuoteRequest struct {
	OriginAsset      string
	DestinationAsset string
	// Amount is expressed in the provider's smallest integer unit.
	Amount    string
	RefundTo  string
	Recipient string
}

// Quote is a successful swap quote.
type Quote struct {
	DepositAddress string          `json:"depositAddress"`
	DepositMemo    string          `json:"depositMemo,omitempty"`
	Raw            json.RawMessage `json:"quote,omitempty"`
}

// Swap settlement statuses reported by the provider.
const (
	StatusPendingDeposit    = "PENDING_DEPOSIT"
	StatusProcessing        = "PROCESSING"
	StatusIncompleteDeposit = "INCOMPLETE_DEPOSIT"
	StatusSuccess           = "SUCCESS"
	StatusTimeout           = "TIMEOUT"
	StatusUnknown           = "UNKNOWN"
)

// SwapStatus is the settlement status of a deposit address.
type SwapStatus struct {
	Status    string   `json:"status"`
	AmountUSD *float64 `json:"amount_usd,omitempty"`
}
