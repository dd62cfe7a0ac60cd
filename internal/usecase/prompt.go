package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"racha-core/internal/domain/entity"
	"racha-core/internal/parser"

	"github.com/shopspring/decimal"
)

const promptTemplate = `Interprete a despesa compartilhada abaixo.

Texto: %q
%s
Responda com um objeto JSON com os campos:
- "scenario": um de [rodizio, happy_hour, churrasco, aniversario, vaquinha, viagem, restaurante] ou "" se não souber
- "method": um de [equal, by_consumption, host_pays, vaquinha, by_family] ou "" se não souber
- "amount": valor total em reais como número, ou null
- "headcount": número de pessoas, ou 0 se não souber
- "participants": nomes das pessoas citadas no texto, na ordem em que aparecem
- "confidence": sua confiança na interpretação, entre 0 e 1`

// BuildPrompt asks a model to interpret text, passing along what was already
// established deterministically.
func BuildPrompt(normalized string, local entity.Interpretation, req entity.InterpretRequest) string {
	var facts []string
	if local.HasAmount() {
		facts = append(facts, "Valor identificado: "+local.Amount.StringFixed(2))
	}
	if len(local.Participants) > 0 {
		facts = append(facts, "Participantes: "+strings.Join(local.Participants, ", "))
	}
	cc := req.Context
	for _, kv := range [][2]string{
		{"Região", cc.Region}, {"Cenário sugerido", cc.ScenarioHint},
		{"Tipo de grupo", cc.GroupType}, {"Período do dia", cc.TimeOfDay},
		{"Preferência de pagamento", req.Preferences.PaymentPreference},
	} {
		if kv[1] != "" {
			facts = append(facts, kv[0]+": "+kv[1])
		}
	}
	known := ""
	if len(facts) > 0 {
		known = strings.Join(facts, "\n") + "\n"
	}
	return fmt.Sprintf(promptTemplate, normalized, known)
}

// modelReading is the JSON a model answers with.
type modelReading struct {
	Scenario     string              `json:"scenario"`
	Method       string              `json:"method"`
	Amount       decimal.NullDecimal `json:"amount"`
	Headcount    int                 `json:"headcount"`
	Participants []string            `json:"participants"`
	Confidence   float64             `json:"confidence"`
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

var errNoJSON = errors.New("no JSON object in model output")

// ParseReading extracts the JSON object from model output, tolerating code
// fences and chatter around it.
func ParseReading(content string) (modelReading, error) {
	var r modelReading
	raw := jsonObject.FindString(content)
	if raw == "" {
		return r, errNoJSON
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return modelReading{}, fmt.Errorf("decode model output: %w", err)
	}
	return r, nil
}

// Merge builds the interpretation that replaces local after a model answered.
// Deterministic facts are kept: a regex-found amount and caller-supplied
// participants are never overridden. Confidence is the model's own, bounded
// by how complete the merged interpretation is.
func Merge(local entity.Interpretation, r modelReading, explicitParticipants bool, modelConfidence float64) entity.Interpretation {
	out := entity.Interpretation{
		Scenario:        local.Scenario,
		Method:          local.Method,
		Amount:          local.Amount,
		Participants:    local.Participants,
		MatchedKeywords: local.MatchedKeywords,
	}
	if s := entity.ParseScenario(r.Scenario); s != entity.ScenarioUnknown {
		out.Scenario = s
	}
	if m := entity.ParseMethod(r.Method); m != entity.MethodUnknown {
		out.Method = m
	}
	if !out.HasAmount() && r.Amount.Valid {
		if a := r.Amount.Decimal.Round(2); a.IsPositive() && !a.GreaterThan(parser.MaxAmount) {
			out.Amount = a
		}
	}
	if !explicitParticipants {
		if names := parser.UniqueParticipants(r.Participants); len(names) >= 2 {
			out.Participants = names
		} else if len(out.Participants) == 0 && r.Headcount >= 2 && r.Headcount <= 100 {
			out.Participants = parser.Placeholders(r.Headcount)
		}
	}
	out.Headcount = len(out.Participants)

	structural := parser.Confidence(out.HasAmount(), out.Scenario != entity.ScenarioUnknown,
		out.Method != entity.MethodUnknown, len(out.Participants))
	out.Confidence = math.Min(math.Max(modelConfidence, 0), structural)
	return out
}
