package domain

// Proof is the outcome of verifying one inference call.
// It is emitted to the output stream and never persisted on its own.
type Proof struct {
	Type             string `json:"type"`
	Node             string `json:"node"`
	ChatID           string `json:"chat_id"`
	RequestHash      string `json:"request_hash"`
	ResponseHash     string `json:"response_hash"`
	Verified         bool   `json:"verified"`
	SigningAddress   string `json:"signing_address"`
	RecoveredAddress string `json:"recovered_address"`
	Signature        string `json:"signature"`
	SigningAlgo      string `json:"signing_algo"`
	TextMatches      bool   `json:"text_matches"`
	SignatureValid   bool   `json:"signature_valid"`
	Error            string `json:"error,omitempty"`
}

// ProofType is the payload type tag of a Proof.
const ProofType = "verification_proof"

// InferenceReceipt identifies one inference call so it can be verified later.
type InferenceReceipt struct {
	ChatID       string `json:"chat_id"`
	RequestHash  string `json:"request_hash"`
	ResponseHash string `json:"response_hash"`
	OriginNode   string `json:"origin_node"`
}

// Attestation is the signed statement published for a chat completion.
type Attestation struct {
	Text           string `json:"text"`
	Signature      string `json:"signature"`
	SigningAddress string `json:"signing_address"`
	SigningAlgo    string `json:"signing_algo"`
}
