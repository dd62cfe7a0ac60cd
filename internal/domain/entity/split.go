package entity

import "github.com/shopspring/decimal"

// Share is what one participant owes.
type Share struct {
	Participant string          `json:"participant"`
	Amount      decimal.Decimal `json:"amount"`
}

// SplitResult holds per-participant amounts in participant order.
// Sum(Shares) + RoundingRemainder == Total.
type SplitResult struct {
	Total             decimal.Decimal `json:"total"`
	Shares            []Share         `json:"shares"`
	Method            Method          `json:"method"`
	Label             string          `json:"label"`
	RoundingRemainder decimal.Decimal `json:"rounding_remainder"`
	// Adjustments lists the centavos participants absorbed so the shares add up.
	Adjustments []Share `json:"adjustments,omitempty"`
}

func (r *SplitResult) ShareOf(participant string) (decimal.Decimal, bool) {
	for _, s := range r.Shares {
		if s.Participant == participant {
			return s.Amount, true
		}
	}
	return decimal.Zero, false
}

func (r *SplitResult) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range r.Shares {
		sum = sum.Add(s.Amount)
	}
	return sum
}
