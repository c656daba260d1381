package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/graph"
)

// checkDonationStatus runs one settlement polling cycle. Non-terminal cycles
// ask to be re-entered after the poll interval.
func (a *agent) checkDonationStatus(ctx context.Context, st *domain.State) (*graph.Command, error) {
	if st.Swap.DepositAddress == "" {
		st.Flags.VerifyingDonation = false
		return fail(st, "donation_status", errors.New("no deposit address to check")), nil
	}

	retries := st.Poll.Retries
	status := domain.StatusUnknown
	res, err := a.deps.Swap.GetStatus(ctx, st.Swap.DepositAddress)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn("Status check failed", "session_id", st.SessionID, "retries", retries, "err", err)
	} else if res.Status != "" {
		status = res.Status
	}

	if err == nil && status == domain.StatusSuccess {
		if err := a.recordDonation(ctx, st, res); err != nil {
			st.Flags.VerifyingDonation = false
			return fail(st, "donation_record", err), nil
		}
		a.finishPolling(ctx, st, domain.StatusSuccess, msgDonationOK)
		return graph.Goto(graph.End), nil
	}

	if retries >= a.maxPollRetries {
		a.finishPolling(ctx, st, domain.StatusTimeout, StatusText(domain.StatusTimeout))
		return graph.Goto(graph.End), nil
	}

	a.paymentStatus(st, status, StatusText(status))
	st.Poll.Status = status
	st.Poll.Retries = retries + 1
	a.pollCycle(ctx, status, st.Poll.Retries)
	return &graph.Command{Goto: NodeVerifyDonation, After: a.pollInterval}, nil
}

// recordDonation stores the donation once per deposit.
func (a *agent) recordDonation(ctx context.Context, st *domain.State, res *domain.SwapStatus) error {
	if st.Swap.DonationID != "" {
		a.logger.Info("Donation already recorded", "session_id", st.SessionID, "donation_id", st.Swap.DonationID)
		return nil
	}
	if st.SelectedCause == nil {
		return errors.New("no cause selected")
	}
	amount, err := strconv.ParseFloat(st.Swap.Amount, 64)
	if err != nil {
		return &domain.InvalidAmountError{Amount: st.Swap.Amount}
	}
	var usd float64
	if res.AmountUSD != nil {
		usd = *res.AmountUSD
	}
	donation, err := a.deps.Persistence.RecordDonation(ctx, st.SelectedCause.ID, amount, usd)
	if err != nil {
		return fmt.Errorf("record donation: %w", err)
	}
	st.Swap.DonationID = donation.ID
	a.logger.Info("Donation recorded",
		"session_id", st.SessionID,
		"donation_id", donation.ID,
		"fundraiser_id", donation.FundraiserID,
		"amount_zec", donation.AmountNative,
	)
	return nil
}

func (a *agent) finishPolling(ctx context.Context, st *domain.State, status, text string) {
	a.paymentStatus(st, status, text)
	st.Poll.Status = status
	st.Flags.VerifyingDonation = false
	a.pollCycle(ctx, status, st.Poll.Retries)
}

func (a *agent) paymentStatus(st *domain.State, status, text string) {
	body, _ := json.Marshal(domain.StatusPayload{Status: status, Message: text})
	toolMessage(st, NodeVerifyDonation, domain.ToolPaymentStatus, uuid.NewString(), string(body))
}

func (a *agent) pollCycle(ctx context.Context, status string, retries int) {
	if a.hooks.OnPollCycle != nil {
		a.hooks.OnPollCycle(ctx, status, retries)
	}
}
