package agent

const classifyPrompt = `IMPORTANT: Analyze this previous context if available: %s

Classify the user's intent into one of these categories:

1. "question" - User asking general questions about privacy or causes (e.g., "hi", "tell me more about the reava cause")
2. "discover_causes" - User explicitly states they want to donate to a cause or is looking to donate to a cause
3. "operations" - User is providing donation details like amount, refund address, or confirmation after a cause is already selected

Examples:
- "Tell me about privacy causes" -> question
- "I want to donate to EFF" -> discover_causes
- "6 ZEC" or "6" (when cause already selected) -> operations
- "zs1abc..." (providing an address) -> operations

Respond with JSON containing intent_type and confidence (0-1).`

const parsePrompt = `You are an intelligent Philanthropy Agent for the Zcash ecosystem. Your goal is to extract structured intent from this user message to query a database of fundraisers.

### OUTPUT FORMAT
You must respond ONLY with a valid JSON object matching this structure:
{
  "text_query": "string" | null,
  "location": "string" | null,
  "tags": ["string"] | null,
  "amount": float | null
}

### EXTRACTION LOGIC
1. **text_query**: the search bar. Put specific project names ("OceanRescue"), specific needs ("laptops"), or distinct topics here.
   - "I want to donate" -> text_query: null
   - "Support privacy tools" -> text_query: "privacy tools"
2. **location**: specific locations (city, country, region, continent), lower case.
   - "in Nigeria" -> location: "nigeria"
3. **amount**: numeric donation amounts, numbers followed by ZEC or standalone numbers in a donation context.
   - "6 ZEC" -> amount: 6.0
   - "0.1" -> amount: 0.1

### EXAMPLES
User: "I want to donate 10 ZEC to help orphans in Lagos"
{"text_query": "orphans", "location": "lagos", "tags": ["orphans", "children"], "amount": 10.0}

User: "Find me trusted privacy tech projects"
{"text_query": "privacy tech", "location": null, "tags": ["privacy", "security"], "amount": null}

User: "6 ZEC"
{"text_query": null, "location": null, "tags": null, "amount": 6.0}

### PREVIOUS CONTEXT
%s`

const needsSearchSystem = "You classify if questions need database search."

const needsSearchPrompt = `Does this question require searching the fundraiser database?

Question: %q

Questions that NEED search:
- "What education causes are available?"
- "Tell me about privacy projects"
- Any question about specific causes/categories

Questions that DON'T need search:
- "Hi" / "Hello" / greetings
- "How does this work?"
- "What is ZEC?"
- "How do I donate?"
- General platform questions

Respond with JSON: {"needs_search": true/false}`

const causesAnswerPrompt = `You are a helpful assistant for a private ZEC donation platform.

AVAILABLE CAUSES:
%s

Answer the user's question about these causes. Be helpful and encourage exploring them.`

const platformAnswerPrompt = `You are a helpful assistant for a private ZEC donation platform.

PLATFORM FEATURES:
- Search verified fundraisers by cause, location, category
- Analyze trust scores (0-100) based on website verification, updates, social proof
- Execute private donations via ZEC shielded addresses (z-addresses)
- Cross-chain routing (ZEC -> any token/chain) while preserving privacy
- All AI operations run in NEAR Trusted Execution Environments (TEE)

PRIVACY BENEFITS:
- Donations use shielded z-addresses (sender stays anonymous)
- Cross-chain routing hides final destination
- AI recommendations computed in isolated TEE
- No tracking, no surveillance

Answer the user's question helpfully (2-3 sentences). If they seem interested in donating, suggest searching for causes.`

const summarySystem = "You are an enthusiastic, helpful philanthropy advisor."

const summaryPrompt = `You are a helpful philanthropy advisor. You just searched and found %d fundraisers.

USER'S SEARCH:
- Query: %q
- Location: %q
- Interests: %v

TOP 3 RESULTS (ranked by trust + relevance):
%s

TASK: Write a friendly, enthusiastic summary highlighting how many matches you found, calling out 1-2 standout projects from the top 3 (names and why they are notable), and encouraging the user to explore the list.

LENGTH: 2 sentences MAX

Now write YOUR summary based on the actual data above:`

// User-facing texts.
const (
	msgCauseNotFound  = "Error: Could not find that fundraiser."
	msgAskAmount      = "How much ZEC would you like to donate?"
	msgAskRefund      = "Please provide your shielded ZEC address (z-address) for refunds."
	msgNoResults      = "I couldn't find any active fundraisers matching your criteria. Try different keywords or a broader location."
	msgAnswerFallback = "Sorry, I couldn't process that right now. You can ask me about the platform or search for causes to support."
	msgSummaryFormat  = "I found %d fundraisers that match your search. Take a look below and let me know which one resonates with you!"
	msgDonationOK     = "Donation verified successfully!"
)

var statusTexts = map[string]string{
	"PENDING_DEPOSIT":    "Waiting for deposit...",
	"PROCESSING":         "Payment detected! Processing...",
	"INCOMPLETE_DEPOSIT": "Deposit incomplete",
	"SUCCESS":            "Donation Confirmed!",
	"TIMEOUT":            "Timeout reached",
}

// StatusText renders a settlement status for the user. Unknown statuses are
// shown verbatim.
func StatusText(status string) string {
	if text, ok := statusTexts[status]; ok {
		return text
	}
	return "Status: " + status
}
