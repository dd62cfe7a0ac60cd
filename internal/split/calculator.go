// Package split computes what each participant owes under the supported
// splitting policies. All arithmetic is done in decimal BRL at centavo precision.
package split

import (
	"fmt"

	"racha-core/internal/domain/entity"

	"github.com/shopspring/decimal"
)

var labels = map[entity.Method]string{
	entity.MethodEqual:         "divisão igual",
	entity.MethodByConsumption: "cada um paga o que consumiu",
	entity.MethodHostPays:      "anfitrião isento",
	entity.MethodVaquinha:      "vaquinha",
	entity.MethodByFamily:      "divisão por família",
}

// Calculate splits the interpretation's amount between its participants.
// It returns entity.ErrInsufficientData when the method needs input that is
// missing, and entity.ErrInput when the input is contradictory.
func Calculate(in entity.Interpretation, inputs entity.SplitInputs) (*entity.SplitResult, error) {
	if in.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount %s is negative", entity.ErrInput, in.Amount)
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount unknown", entity.ErrInsufficientData)
	}
	if len(in.Participants) == 0 {
		return nil, fmt.Errorf("%w: participants unknown", entity.ErrInsufficientData)
	}
	if err := checkUnique(in.Participants); err != nil {
		return nil, err
	}
	total := in.Amount.Round(2)
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: amount %s rounds to zero", entity.ErrInput, in.Amount)
	}

	var (
		res *entity.SplitResult
		err error
	)
	switch in.Method {
	case entity.MethodEqual, entity.MethodVaquinha:
		res = equal(total, in.Participants)
	case entity.MethodHostPays:
		res, err = hostPays(total, in.Participants, inputs.Host)
	case entity.MethodByConsumption:
		res, err = byConsumption(total, in.Participants, inputs.Consumption)
	case entity.MethodByFamily:
		res, err = byFamily(total, in.Participants, inputs.Families)
	default:
		return nil, fmt.Errorf("%w: split method unknown", entity.ErrInsufficientData)
	}
	if err != nil {
		return nil, err
	}
	res.Method = in.Method
	res.Label = labels[in.Method]
	if err := Validate(res); err != nil {
		return nil, err
	}
	return res, nil
}

// Validate checks that no share is negative and that shares plus remainder
// add up to the total.
func Validate(r *entity.SplitResult) error {
	for _, s := range r.Shares {
		if s.Amount.IsNegative() {
			return fmt.Errorf("split gives %q a negative share %s", s.Participant, s.Amount)
		}
	}
	if !r.Sum().Add(r.RoundingRemainder).Equal(r.Total) {
		return fmt.Errorf("split does not add up: shares %s + remainder %s != total %s",
			r.Sum(), r.RoundingRemainder, r.Total)
	}
	return nil
}

func checkUnique(participants []string) error {
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if seen[p] {
			return fmt.Errorf("%w: participant %q listed twice", entity.ErrInput, p)
		}
		seen[p] = true
	}
	return nil
}

// divide splits total into n floor-rounded centavo parts; the first part
// absorbs what rounding left over.
func divide(total decimal.Decimal, n int) ([]decimal.Decimal, decimal.Decimal) {
	count := decimal.NewFromInt(int64(n))
	base := total.Div(count).RoundDown(2)
	rest := total.Sub(base.Mul(count))
	parts := make([]decimal.Decimal, n)
	for i := range parts {
		parts[i] = base
	}
	parts[0] = parts[0].Add(rest)
	return parts, rest
}

func equal(total decimal.Decimal, participants []string) *entity.SplitResult {
	parts, rest := divide(total, len(participants))
	res := &entity.SplitResult{Total: total, Shares: make([]entity.Share, len(participants))}
	for i, p := range participants {
		res.Shares[i] = entity.Share{Participant: p, Amount: parts[i]}
	}
	res.Adjustments = adjustment(nil, participants[0], rest)
	return res
}

func hostPays(total decimal.Decimal, participants []string, host string) (*entity.SplitResult, error) {
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: host_pays needs the host and at least one more participant", entity.ErrInput)
	}
	if host == "" {
		host = participants[0]
	}
	others := make([]string, 0, len(participants)-1)
	for _, p := range participants {
		if p != host {
			others = append(others, p)
		}
	}
	if len(others) == len(participants) {
		return nil, fmt.Errorf("%w: host %q is not a participant", entity.ErrInput, host)
	}

	sub := equal(total, others)
	res := &entity.SplitResult{Total: total, Adjustments: sub.Adjustments}
	for _, p := range participants {
		amount := decimal.Zero
		if p != host {
			amount, _ = sub.ShareOf(p)
		}
		res.Shares = append(res.Shares, entity.Share{Participant: p, Amount: amount})
	}
	return res, nil
}

// byConsumption charges each participant in proportion to what they consumed.
// When the consumption adds up to the total it is charged as is.
func byConsumption(total decimal.Decimal, participants []string, consumption map[string]decimal.Decimal) (*entity.SplitResult, error) {
	if len(consumption) == 0 {
		return nil, fmt.Errorf("%w: by_consumption needs what each participant consumed", entity.ErrInsufficientData)
	}
	known := make(map[string]bool, len(participants))
	sum := decimal.Zero
	for _, p := range participants {
		known[p] = true
		c, ok := consumption[p]
		if !ok {
			return nil, fmt.Errorf("%w: no consumption for %q", entity.ErrInsufficientData, p)
		}
		if c.IsNegative() {
			return nil, fmt.Errorf("%w: negative consumption for %q", entity.ErrInput, p)
		}
		sum = sum.Add(c)
	}
	for name := range consumption {
		if !known[name] {
			return nil, fmt.Errorf("%w: consumption for unknown participant %q", entity.ErrInput, name)
		}
	}
	if !sum.IsPositive() {
		return nil, fmt.Errorf("%w: consumption adds up to zero", entity.ErrInput)
	}

	res := &entity.SplitResult{Total: total, Shares: make([]entity.Share, len(participants))}
	allocated := decimal.Zero
	absorber := -1
	for i, p := range participants {
		c := consumption[p]
		share := total.Mul(c).Div(sum).RoundDown(2)
		if sum.Equal(total) {
			share = c.RoundDown(2)
		}
		if absorber < 0 && c.IsPositive() {
			absorber = i
		}
		res.Shares[i] = entity.Share{Participant: p, Amount: share}
		allocated = allocated.Add(share)
	}
	rest := total.Sub(allocated)
	res.Shares[absorber].Amount = res.Shares[absorber].Amount.Add(rest)
	res.Adjustments = adjustment(nil, participants[absorber], rest)
	return res, nil
}

// byFamily divides the total equally between family units and then equally
// inside each unit. Participants outside every family are units of one.
func byFamily(total decimal.Decimal, participants []string, families []entity.Family) (*entity.SplitResult, error) {
	if len(families) == 0 {
		return nil, fmt.Errorf("%w: by_family needs the family grouping", entity.ErrInsufficientData)
	}
	index := make(map[string]int, len(participants))
	for i, p := range participants {
		index[p] = i
	}

	grouped := make(map[string]bool)
	var units [][]string
	for _, f := range families {
		if len(f.Members) == 0 {
			return nil, fmt.Errorf("%w: family %q has no members", entity.ErrInput, f.Name)
		}
		for _, m := range f.Members {
			if _, ok := index[m]; !ok {
				return nil, fmt.Errorf("%w: family %q member %q is not a participant", entity.ErrInput, f.Name, m)
			}
			if grouped[m] {
				return nil, fmt.Errorf("%w: %q belongs to more than one family", entity.ErrInput, m)
			}
			grouped[m] = true
		}
		units = append(units, f.Members)
	}
	for _, p := range participants {
		if !grouped[p] {
			units = append(units, []string{p})
		}
	}

	res := &entity.SplitResult{Total: total, Shares: make([]entity.Share, len(participants))}
	unitParts, rest := divide(total, len(units))
	res.Adjustments = adjustment(nil, units[0][0], rest)
	for u, members := range units {
		parts, inner := divide(unitParts[u], len(members))
		res.Adjustments = adjustment(res.Adjustments, members[0], inner)
		for i, m := range members {
			res.Shares[index[m]] = entity.Share{Participant: m, Amount: parts[i]}
		}
	}
	return res, nil
}

func adjustment(adj []entity.Share, participant string, amount decimal.Decimal) []entity.Share {
	if amount.IsZero() {
		return adj
	}
	for i := range adj {
		if adj[i].Participant == participant {
			adj[i].Amount = adj[i].Amount.Add(amount)
			return adj
		}
	}
	return append(adj, entity.Share{Participant: participant, Amount: amount})
}
