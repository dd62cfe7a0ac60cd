package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest value accepted as an expense total.
var MaxAmount = decimal.NewFromInt(10_000_000)

const number = `(\d{1,3}(?:\.\d{3})+|\d+)`

// A number must not sit inside a longer number: "r$ 12.50" and "12.50 reais"
// match nothing rather than 12 or 50.
const (
	notAfterNumber  = `(?:^|[^\d.,])`
	notBeforeNumber = `(?:[^\d.,]|[.,](?:\D|$)|$)`
)

// amountFamilies are tried in order and the first family with any match
// decides the result, even if a later family matches earlier in the text.
var amountFamilies = []*regexp.Regexp{
	regexp.MustCompile(`r\$\s*` + number + `,(\d{1,2})` + notBeforeNumber),
	regexp.MustCompile(`r\$\s*` + number + notBeforeNumber),
	regexp.MustCompile(notAfterNumber + number + `,(\d{1,2})\s*(?:reais|real)\b`),
	regexp.MustCompile(notAfterNumber + number + `\s*(?:reais|real)\b`),
}

// ExtractAmount returns the first plausible BRL value in normalized text.
// Zero, negative and absurdly large values are reported as not found.
func ExtractAmount(normalized string) (decimal.Decimal, bool) {
	for _, re := range amountFamilies {
		m := re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ".", "")
		if len(m) > 2 && m[2] != "" {
			raw += "." + m[2]
		}
		v, err := decimal.NewFromString(raw)
		if err != nil || !v.IsPositive() || v.GreaterThan(MaxAmount) {
			return decimal.Zero, false
		}
		return v, true
	}
	return decimal.Zero, false
}
