package parser

import (
	"regexp"
	"strconv"
)

var numberWords = map[string]int{
	"dois": 2, "duas": 2, "tres": 3, "quatro": 4, "cinco": 5, "seis": 6, "sete": 7,
	"oito": 8, "nove": 9, "dez": 10, "onze": 11, "doze": 12, "treze": 13,
	"catorze": 14, "quatorze": 14, "quinze": 15, "dezesseis": 16, "dezessete": 17,
	"dezoito": 18, "dezenove": 19, "vinte": 20,
}

const countWord = `(\d{1,3}|duas|dois|tres|quatro|cinco|seis|sete|oito|nove|dez|onze|doze|treze|catorze|quatorze|quinze|dezesseis|dezessete|dezoito|dezenove|vinte)`

var headcountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b` + countWord + `\s+(?:pessoas|amigos|amigas|participantes|convidados|adultos|colegas)\b`),
	regexp.MustCompile(`\b(?:entre|somos|seremos|fomos|eramos)\s+` + countWord + `\b`),
	regexp.MustCompile(`\bdividi\w*\s+(?:por|em)\s+` + countWord + `\b`),
}

var currencyNext = regexp.MustCompile(`^\s*(?:reais|real)\b`)

// ExtractHeadcount reads a group size from text such as "para 4 pessoas" or
// "somos cinco". It returns 0 when no size in [2, 100] is stated.
// Only a count is extracted, never names.
func ExtractHeadcount(normalized string) int {
	text := fold(normalized)
	for _, re := range headcountPatterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			word := text[m[2]:m[3]]
			// "dividir em 3 reais" is an amount, not a group size.
			if currencyNext.MatchString(text[m[1]:]) {
				continue
			}
			n, ok := numberWords[word]
			if !ok {
				var err error
				if n, err = strconv.Atoi(word); err != nil {
					continue
				}
			}
			if n >= 2 && n <= 100 {
				return n
			}
		}
	}
	return 0
}
