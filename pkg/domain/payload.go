package domain

// Payload type tags carried by assistant messages.
const (
	PayloadCauseList = "cause_list_with_summary"
	PayloadNoResults = "no_results"
)

// CauseListPayload presents ranked candidates to the user.
type CauseListPayload struct {
	Type       string      `json:"type"`
	Summary    string      `json:"summary"`
	Causes     []CauseView `json:"causes"`
	TotalFound int         `json:"total_found"`
}

// NoResultsPayload is emitted when discovery finds nothing.
type NoResultsPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// InstructionsPayload tells the user where to send the donation.
type InstructionsPayload struct {
	Quote         any       `json:"quote"`
	DepositAddr   string    `json:"deposit_addr"`
	DepositMemo   string    `json:"deposit_memo,omitempty"`
	Cause         CauseView `json:"cause"`
	Amount        string    `json:"amount"`
	RefundAddress string    `json:"refund_address"`
	QRCodeData    string    `json:"qr_code_data"`
}

// StatusPayload is the content of a payment_status tool message.
type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
