package usecase

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"racha-core/internal/domain/entity"

	"github.com/zeebo/blake3"
)

// Fingerprint identifies a request for caching: normalized text, scenario
// hint, amount and participant count, plus the caller-supplied participants
// and split inputs the cached split depends on.
func Fingerprint(normalized string, req entity.InterpretRequest, local entity.Interpretation) string {
	var b strings.Builder
	field := func(s string) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}

	field(normalized)
	field(req.Context.ScenarioHint)
	field(amountKey(local))
	field(strconv.Itoa(local.ParticipantCount()))
	for _, p := range local.Participants {
		field(p)
	}

	field("host")
	field(req.Split.Host)
	names := make([]string, 0, len(req.Split.Consumption))
	for name := range req.Split.Consumption {
		names = append(names, name)
	}
	sort.Strings(names)
	field("consumption")
	for _, name := range names {
		field(name)
		field(req.Split.Consumption[name].StringFixed(2))
	}
	field("families")
	for _, f := range req.Split.Families {
		field(f.Name)
		field(strconv.Itoa(len(f.Members)))
		for _, m := range f.Members {
			field(m)
		}
	}

	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func amountKey(in entity.Interpretation) string {
	if !in.HasAmount() {
		return "unknown"
	}
	return in.Amount.StringFixed(2)
}

func semanticKey(normalized string, req entity.InterpretRequest, local entity.Interpretation) entity.SemanticKey {
	return entity.SemanticKey{
		NormalizedText:   normalized,
		Amount:           amountKey(local),
		ParticipantCount: local.ParticipantCount(),
		ScenarioHint:     req.Context.ScenarioHint,
		Scenario:         string(local.Scenario),
		Method:           string(local.Method),
	}
}
