package agent

import (
	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
)

// RouteAfterClassification picks the step following classify_intent.
// Active modes win over the classified intent.
func RouteAfterClassification(st *domain.State) string {
	switch {
	case st.Flags.UpdatingRefundAddress && st.SelectedCause != nil:
		return NodeResolveAssets
	case st.Flags.UpdatingRefundAddress:
		return NodeEndAddressUpdate
	case st.Flags.VerifyingDonation:
		return NodeVerifyDonation
	case st.Intent == domain.IntentQuestion:
		return NodeAnswerQuestion
	default:
		return NodeParseIntent
	}
}

// RouteAfterParsing picks the step following parse_intent. An operations
// intent without a selected cause falls back to discovery.
func RouteAfterParsing(st *domain.State) string {
	switch {
	case st.Intent == domain.IntentOperations && st.SelectedCause != nil:
		if st.Swap.Amount == "" {
			return graph.End
		}
		if st.Swap.RefundAddress == "" {
			return NodeCollectInfo
		}
		return NodeResolveAssets
	case st.Intent == domain.IntentDiscover, st.Intent == domain.IntentOperations:
		return NodeDiscoverCauses
	default:
		return graph.End
	}
}

// RouteAfterQuote sends failed quotes to the error notification.
func RouteAfterQuote(st *domain.State) string {
	if st.Flags.Errored {
		return NodeNotifyOnError
	}
	return NodeFinalInstructions
}
