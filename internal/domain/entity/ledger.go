package entity

import "github.com/shopspring/decimal"

// BudgetLedger is the spend of one calendar day in the budget timezone.
type BudgetLedger struct {
	Date     string          `json:"date"`
	SpentBRL decimal.Decimal `json:"spent_brl"`
	CapBRL   decimal.Decimal `json:"cap_brl"`
}

func (l BudgetLedger) Remaining() decimal.Decimal {
	r := l.CapBRL.Sub(l.SpentBRL)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}
