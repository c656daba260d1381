package agent

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/0x-stone/zspa/pkg/domain"
)

// smallestUnitScale is the number of provider units per whole token.
var smallestUnitScale = big.NewRat(100_000_000, 1)

// AmountToSmallestUnit converts a positive decimal amount to the provider's
// integer unit (10^8 per token), truncating extra precision.
func AmountToSmallestUnit(amount string) (string, error) {
	s := strings.TrimSpace(amount)
	if s == "" || strings.Contains(s, "/") {
		return "", &domain.InvalidAmountError{Amount: amount}
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok || r.Sign() <= 0 {
		return "", &domain.InvalidAmountError{Amount: amount}
	}
	r.Mul(r, smallestUnitScale)
	units := new(big.Int).Quo(r.Num(), r.Denom())
	if units.Sign() <= 0 {
		return "", &domain.InvalidAmountError{Amount: amount}
	}
	return units.String(), nil
}

// FormatAmount renders a parsed amount without trailing zeros.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
