package parser

import (
	"fmt"
	"math"
	"strings"

	"racha-core/internal/domain/entity"
)

// Confidence weights. An amount is required for any confidence at all.
const (
	weightAmount       = 0.3
	weightScenario     = 0.1
	weightMethod       = 0.3
	weightParticipants = 0.3

	// PartialCap bounds confidence while the method or the group is unknown.
	PartialCap = 0.5
)

// Confidence scores how complete an interpretation is. It never decreases
// when another field becomes known.
func Confidence(hasAmount, hasScenario, hasMethod bool, participants int) float64 {
	if !hasAmount {
		return 0
	}
	c := weightAmount
	if hasScenario {
		c += weightScenario
	}
	if hasMethod {
		c += weightMethod
	}
	groupKnown := participants >= 2
	if groupKnown {
		c += weightParticipants
	}
	if !hasMethod || !groupKnown {
		c = math.Min(c, PartialCap)
	}
	return math.Round(c*100) / 100
}

// Resolver combines lexicon, amount and headcount signals into one Interpretation.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve interprets text. known are participant identifiers supplied by the
// caller; they are never guessed from the text. When none are supplied but the
// text states a group size, placeholder identifiers stand in for the group.
func (r *Resolver) Resolve(text string, known []string, cc entity.CulturalContext) entity.Interpretation {
	if strings.TrimSpace(text) == "" {
		return entity.Interpretation{}
	}
	normalized := Normalize(text)

	cands := MatchLexicon(normalized)
	amount, hasAmount := ExtractAmount(normalized)

	in := entity.Interpretation{
		Scenario:        pickScenario(cands.Scenarios, cc.ScenarioHint),
		Method:          pickMethod(cands.Methods),
		Participants:    UniqueParticipants(known),
		MatchedKeywords: keywords(cands),
	}
	if hasAmount {
		in.Amount = amount
	}
	if len(in.Participants) == 0 {
		in.Participants = Placeholders(ExtractHeadcount(normalized))
	}
	in.Headcount = len(in.Participants)
	in.Confidence = Confidence(hasAmount, in.Scenario != entity.ScenarioUnknown,
		in.Method != entity.MethodUnknown, len(in.Participants))
	return in
}

func pickScenario(cands []Candidate, hint string) entity.Scenario {
	if len(cands) > 0 {
		return entity.Scenario(cands[0].Tag)
	}
	return entity.ParseScenario(hint)
}

// pickMethod relies on MethodEntries declaring specific methods before equal.
func pickMethod(cands []Candidate) entity.Method {
	if len(cands) == 0 {
		return entity.MethodUnknown
	}
	return entity.Method(cands[0].Tag)
}

func keywords(c Candidates) []string {
	var out []string
	seen := make(map[string]bool)
	for _, group := range [][]Candidate{c.Scenarios, c.Methods} {
		for _, cand := range group {
			for _, kw := range cand.Keywords {
				if !seen[kw] {
					seen[kw] = true
					out = append(out, kw)
				}
			}
		}
	}
	return out
}

// UniqueParticipants trims names and drops blanks and repeats, keeping mention order.
func UniqueParticipants(names []string) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Placeholders names an anonymous group of n people.
func Placeholders(n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("pessoa_%d", i+1)
	}
	return out
}
