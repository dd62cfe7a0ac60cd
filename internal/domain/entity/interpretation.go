package entity

import "github.com/shopspring/decimal"

// KeywordMatch records which literal text triggered a lexicon tag.
type KeywordMatch struct {
	Tag     string `json:"tag"`
	Keyword string `json:"keyword"`
}

// Interpretation is the structured reading of one expense utterance.
// A zero Amount means the amount is unknown.
type Interpretation struct {
	Scenario        Scenario        `json:"scenario"`
	Method          Method          `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	Participants    []string        `json:"participants"`
	Headcount       int             `json:"headcount,omitempty"`
	Confidence      float64         `json:"confidence"`
	MatchedKeywords []string        `json:"matched_keywords"`
}

func (i Interpretation) HasAmount() bool {
	return i.Amount.IsPositive()
}

// ParticipantCount is the number of known participants, or zero when unknown.
func (i Interpretation) ParticipantCount() int {
	return len(i.Participants)
}
