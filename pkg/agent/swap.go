package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
)

const errTypeQuote = "quote_generation"

func (a *agent) resolveAssets(ctx context.Context, st *domain.State) (*graph.Command, error) {
	st.Flags.UpdatingRefundAddress = false
	st.Swap.OriginAsset = ""
	st.Swap.DestinationAsset = ""

	cause := st.SelectedCause
	if cause == nil {
		return fail(st, "asset_resolution", errors.New("no cause selected")), nil
	}

	tokens, err := a.deps.Swap.ListTokens(ctx)
	if err != nil {
		return fail(st, "asset_resolution", fmt.Errorf("failed to fetch tokens: %w", err)), nil
	}

	origin, ok := findToken(tokens, a.originSymbol, a.originChain)
	if !ok {
		return fail(st, "asset_resolution", &domain.AssetResolutionError{Symbol: a.originSymbol, Chain: a.originChain}), nil
	}
	dest, ok := findToken(tokens, cause.PreferredToken, cause.PreferredChain)
	if !ok {
		return fail(st, "asset_resolution", &domain.AssetResolutionError{Symbol: cause.PreferredToken, Chain: cause.PreferredChain}), nil
	}
	st.Swap.OriginAsset = origin.AssetID
	st.Swap.DestinationAsset = dest.AssetID
	return nil, nil
}

// findToken returns the first catalog entry matching symbol and chain, ignoring case.
func findToken(tokens []domain.Token, symbol, chain string) (domain.Token, bool) {
	if symbol == "" || chain == "" {
		return domain.Token{}, false
	}
	for _, t := range tokens {
		if strings.EqualFold(t.Symbol, symbol) && strings.EqualFold(t.Chain, chain) && t.AssetID != "" {
			return t, true
		}
	}
	return domain.Token{}, false
}

func (a *agent) generateQuote(ctx context.Context, st *domain.State) (*graph.Command, error) {
	st.Flags.Errored = false
	st.Swap.DepositAddress = ""
	st.Swap.DepositMemo = ""
	st.Swap.Quote = nil
	st.Swap.DonationID = ""

	if st.SelectedCause == nil || st.SelectedCause.WalletAddress == "" {
		st.Fail(errTypeQuote, "No recipient address available")
		return nil, nil
	}
	units, err := AmountToSmallestUnit(st.Swap.Amount)
	if err != nil {
		st.Fail(errTypeQuote, "Invalid amount format")
		return nil, nil
	}
	if !st.Swap.Resolved() {
		st.Fail(errTypeQuote, "Swap assets are not resolved")
		return nil, nil
	}

	quote, err := a.deps.Swap.RequestQuote(ctx, domain.QuoteRequest{
		OriginAsset:      st.Swap.OriginAsset,
		DestinationAsset: st.Swap.DestinationAsset,
		Amount:           units,
		RefundTo:         st.Swap.RefundAddress,
		Recipient:        st.SelectedCause.WalletAddress,
	})
	if err == nil && quote.DepositAddress == "" {
		err = &domain.QuoteError{Reason: "missing deposit address"}
	}
	if err != nil {
		st.Fail(errTypeQuote, "Quote generation failed: "+err.Error())
		return nil, nil
	}

	st.Swap.Quote = quote
	st.Swap.DepositAddress = quote.DepositAddress
	st.Swap.DepositMemo = quote.DepositMemo
	return nil, nil
}

func (a *agent) finalInstructions(_ context.Context, st *domain.State) (*graph.Command, error) {
	var quote any = json.RawMessage("{}")
	if st.Swap.Quote != nil && len(st.Swap.Quote.Raw) > 0 {
		quote = st.Swap.Quote.Raw
	}
	var view domain.CauseView
	if st.SelectedCause != nil {
		view = st.SelectedCause.View()
	}
	body, err := json.Marshal(domain.InstructionsPayload{
		Quote:         quote,
		DepositAddr:   st.Swap.DepositAddress,
		DepositMemo:   st.Swap.DepositMemo,
		Cause:         view,
		Amount:        st.Swap.Amount,
		RefundAddress: st.Swap.RefundAddress,
		QRCodeData:    fmt.Sprintf("zcash:%s?amount=%s", st.Swap.DepositAddress, st.Swap.Amount),
	})
	if err != nil {
		return nil, fmt.Errorf("encode instructions: %w", err)
	}
	say(st, NodeFinalInstructions, string(body))
	st.Flags.RequiresUserInput = false
	return nil, nil
}

func (a *agent) notifyOnError(_ context.Context, st *domain.State) (*graph.Command, error) {
	info := domain.ErrorInfo{Type: "unknown", Message: "unknown error"}
	if st.LastError != nil {
		info = *st.LastError
	}
	body, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode error notice: %w", err)
	}
	a.logger.Warn("Flow error", "session_id", st.SessionID, "error_type", info.Type, "err", info.Message)
	toolMessage(st, NodeNotifyOnError, domain.ToolErrorOccurred, info.Type, string(body))
	return nil, nil
}
