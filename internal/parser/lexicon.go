package parser

import (
	"strings"

	"racha-core/internal/domain/entity"
)

// Entry is one tagged variant of a lexicon. Each stem is one or more
// accent-free words; a word ending in '*' matches any token starting with it,
// otherwise the token must be equal.
type Entry struct {
	Tag   string
	Stems []string
}

// Candidate is a tag that fired together with the literal text that fired it.
type Candidate struct {
	Tag      string
	Keywords []string
}

// Candidates are the unranked lexicon hits for one text, in declaration order.
type Candidates struct {
	Scenarios []Candidate
	Methods   []Candidate
}

// ScenarioEntries are declared in priority order.
var ScenarioEntries = []Entry{
	{Tag: string(entity.ScenarioRodizio), Stems: []string{"rodizio*"}},
	{Tag: string(entity.ScenarioHappyHour), Stems: []string{"happy hour", "happy", "hh", "boteco*", "bar", "barzinho*", "chope*", "chopp*", "cerveja*"}},
	{Tag: string(entity.ScenarioChurrasco), Stems: []string{"churras*"}},
	{Tag: string(entity.ScenarioAniversario), Stems: []string{"aniversari*", "niver", "parabens"}},
	{Tag: string(entity.ScenarioVaquinha), Stems: []string{"vaquinh*", "vaca", "caixinha*"}},
	{Tag: string(entity.ScenarioViagem), Stems: []string{"viage*", "viaj*", "hospedage*", "airbnb", "pousada*"}},
	{Tag: string(entity.ScenarioRestaurante), Stems: []string{"restaurante*", "jantar*", "almoco*", "pizzaria*", "lanchonete*"}},
}

// Specific methods come before equal so that they win ties.
var MethodEntries = []Entry{
	{Tag: string(entity.MethodByFamily), Stems: []string{"por familia*", "cada familia*", "entre familias", "entre as familias", "por casal", "por nucleo*"}},
	{Tag: string(entity.MethodByConsumption), Stems: []string{"consum*", "o que pediu", "o que pediram", "o que bebeu", "o que comeu", "cada um o seu", "cada um paga o seu", "conta separada*", "individua*"}},
	{Tag: string(entity.MethodHostPays), Stems: []string{"eu pago", "pago agora", "pago tudo", "por minha conta", "eu banco", "eu convido", "eu acerto"}},
	{Tag: string(entity.MethodVaquinha), Stems: []string{"vaquinh*", "vaca", "caixinha*", "juntar dinheiro", "cada um contribu*"}},
	{Tag: string(entity.MethodEqual), Stems: []string{"igua*", "rach*", "meio a meio", "dividi*", "divide*"}},
}

type stemWord struct {
	text   string
	prefix bool
}

type compiledEntry struct {
	tag     string
	phrases [][]stemWord
}

// Lexicon matches tagged stems against tokenized text.
type Lexicon struct {
	entries []compiledEntry
}

func NewLexicon(entries []Entry) *Lexicon {
	l := &Lexicon{entries: make([]compiledEntry, 0, len(entries))}
	for _, e := range entries {
		ce := compiledEntry{tag: e.Tag}
		for _, stem := range e.Stems {
			var phrase []stemWord
			for _, w := range strings.Fields(fold(strings.ToLower(stem))) {
				if strings.HasSuffix(w, "*") {
					phrase = append(phrase, stemWord{text: strings.TrimSuffix(w, "*"), prefix: true})
				} else {
					phrase = append(phrase, stemWord{text: w})
				}
			}
			if len(phrase) > 0 {
				ce.phrases = append(ce.phrases, phrase)
			}
		}
		l.entries = append(l.entries, ce)
	}
	return l
}

// Match returns every tag with at least one stem present in text.
func (l *Lexicon) Match(text string) []Candidate {
	return l.matchTokens(text, tokenize(text))
}

func (l *Lexicon) matchTokens(text string, tokens []token) []Candidate {
	var out []Candidate
	for _, e := range l.entries {
		var keywords []string
		seen := make(map[string]bool)
		for _, phrase := range e.phrases {
			for i := 0; i+len(phrase) <= len(tokens); i++ {
				if !phraseAt(tokens[i:], phrase) {
					continue
				}
				kw := text[tokens[i].start:tokens[i+len(phrase)-1].end]
				if !seen[kw] {
					seen[kw] = true
					keywords = append(keywords, kw)
				}
			}
		}
		if len(keywords) > 0 {
			out = append(out, Candidate{Tag: e.tag, Keywords: keywords})
		}
	}
	return out
}

func phraseAt(tokens []token, phrase []stemWord) bool {
	for j, w := range phrase {
		t := tokens[j].folded
		if w.prefix {
			if !strings.HasPrefix(t, w.text) {
				return false
			}
		} else if t != w.text {
			return false
		}
	}
	return true
}

var (
	scenarioLexicon = NewLexicon(ScenarioEntries)
	methodLexicon   = NewLexicon(MethodEntries)
)

// MatchLexicon runs the scenario and method lexicons over normalized text.
// It never fails; text without keywords yields empty candidate lists.
func MatchLexicon(normalized string) Candidates {
	tokens := tokenize(normalized)
	return Candidates{
		Scenarios: scenarioLexicon.matchTokens(normalized, tokens),
		Methods:   methodLexicon.matchTokens(normalized, tokens),
	}
}
