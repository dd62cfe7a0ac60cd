package usecase

import (
	"context"

	"racha-core/internal/domain/entity"
	"racha-core/internal/domain/repository"
	"racha-core/internal/metrics"

	"go.uber.org/zap"
)

const (
	// maxTierCalls bounds paid calls per request: one FAST call and one escalation.
	maxTierCalls = 2
	// Below this self-reported confidence FAST escalates straight to CAPABLE.
	lowModelConfidence = 0.4
)

// ModelRouter picks AI tiers for interpretations the parser could not settle
// and guards the daily budget around every paid call.
type ModelRouter struct {
	provider  repository.ModelCaller
	ledger    repository.BudgetLedger
	tiers     map[entity.ModelTier]entity.TierSpec
	threshold float64
	log       *zap.Logger
}

func NewModelRouter(provider repository.ModelCaller, ledger repository.BudgetLedger, tiers map[entity.ModelTier]entity.TierSpec, threshold float64, log *zap.Logger) *ModelRouter {
	if log == nil {
		log = zap.NewNop()
	}
	return &ModelRouter{
		provider:  provider,
		ledger:    ledger,
		tiers:     tiers,
		threshold: threshold,
		log:       log.Named("router"),
	}
}

type routeJob struct {
	requestID  string
	normalized string
	day        string
	local      entity.Interpretation
	explicit   bool
	req        entity.InterpretRequest
}

type routeOutcome struct {
	interp         entity.Interpretation
	tier           entity.ModelTier
	calls          int
	answered       bool
	budgetExceeded bool
	degraded       bool
}

// Route starts at FAST and escalates once when the answer stays below the
// confidence threshold. Each call first reserves its cost on the ledger; a
// refused reservation stops escalation and flags the outcome.
func (r *ModelRouter) Route(ctx context.Context, job routeJob) routeOutcome {
	out := routeOutcome{interp: job.local}
	prompt := BuildPrompt(job.normalized, job.local, job.req)
	log := r.log.With(zap.String("request_id", job.requestID))

	tier := entity.TierFast
	for out.calls < maxTierCalls {
		spec, ok := r.tiers[tier]
		if !ok {
			log.Error("tier not configured", zap.String("tier", string(tier)))
			out.degraded = true
			break
		}

		granted, err := r.ledger.Reserve(ctx, job.day, spec.CostBRL)
		if err != nil {
			log.Error("budget ledger unavailable", zap.Error(err))
			out.degraded = true
			break
		}
		if !granted {
			log.Info("budget exceeded, not calling model",
				zap.String("tier", string(tier)), zap.String("day", job.day))
			metrics.BudgetRejections.Inc()
			out.budgetExceeded = true
			break
		}

		reply, err := r.provider.CallModel(ctx, tier, prompt)
		if err != nil {
			if rerr := r.ledger.Release(context.WithoutCancel(ctx), job.day, spec.CostBRL); rerr != nil {
				log.Error("could not release budget reservation", zap.Error(rerr))
			}
			log.Warn("model tier failed, keeping best interpretation", zap.String("tier", string(tier)), zap.Error(err))
			out.degraded = true
			break
		}
		out.calls++
		out.answered = true
		out.tier = tier
		metrics.AISpendBRL.WithLabelValues(string(tier)).Add(spec.CostBRL.InexactFloat64())

		reading, err := ParseReading(reply.Content)
		if err != nil {
			log.Warn("unreadable model output", zap.String("tier", string(tier)), zap.Error(err))
		}
		cand := Merge(job.local, reading, job.explicit, reply.ModelConfidence)
		if cand.Confidence >= out.interp.Confidence {
			out.interp = cand
		}
		log.Debug("model answered",
			zap.String("tier", string(tier)),
			zap.String("model", reply.Model),
			zap.Float64("model_confidence", reply.ModelConfidence),
			zap.Float64("confidence", cand.Confidence))

		if cand.Confidence >= r.threshold {
			break
		}
		tier = escalation(reply.ModelConfidence)
	}
	return out
}

func escalation(modelConfidence float64) entity.ModelTier {
	if modelConfidence < lowModelConfidence {
		return entity.TierCapable
	}
	return entity.TierBalanced
}
