package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"racha-core/internal/domain/entity"
	"racha-core/internal/domain/repository"
	"racha-core/internal/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ResilientProvider wraps a ModelCaller with a per-call timeout, one retry on
// the same tier and a circuit breaker per tier. Every failure it returns
// wraps entity.ErrProvider.
type ResilientProvider struct {
	caller     repository.ModelCaller
	breakers   map[entity.ModelTier]*gobreaker.CircuitBreaker
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration // per attempt
	log        *zap.Logger
}

func NewResilientProvider(caller repository.ModelCaller, timeout time.Duration, log *zap.Logger) *ResilientProvider {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("provider")
	r := &ResilientProvider{
		caller:     caller,
		breakers:   make(map[entity.ModelTier]*gobreaker.CircuitBreaker),
		maxRetries: 1,
		baseDelay:  200 * time.Millisecond,
		timeout:    timeout,
		log:        log,
	}
	for _, tier := range []entity.ModelTier{entity.TierFast, entity.TierBalanced, entity.TierCapable} {
		r.breakers[tier] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(tier),
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// a caller giving up says nothing about the provider
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change",
					zap.String("tier", name), zap.Stringer("from", from), zap.Stringer("to", to))
			},
		})
	}
	return r
}

func (r *ResilientProvider) CallModel(ctx context.Context, tier entity.ModelTier, prompt string) (*entity.ModelReply, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		reply, err := r.attempt(ctx, tier, prompt)
		if err == nil {
			metrics.AICalls.WithLabelValues(string(tier), "ok").Inc()
			return reply, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.AICalls.WithLabelValues(string(tier), "breaker_open").Inc()
			break
		}
		metrics.AICalls.WithLabelValues(string(tier), "error").Inc()
		r.log.Warn("model call failed", zap.String("tier", string(tier)), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == r.maxRetries {
			break
		}

		select {
		case <-time.After(r.calculateBackoff(attempt)):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: tier %s: %w", entity.ErrProvider, tier, ctx.Err())
		}
	}
	return nil, fmt.Errorf("%w: tier %s: %w", entity.ErrProvider, tier, lastErr)
}

func (r *ResilientProvider) attempt(ctx context.Context, tier entity.ModelTier, prompt string) (*entity.ModelReply, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	breaker, ok := r.breakers[tier]
	if !ok {
		return r.caller.CallModel(callCtx, tier, prompt)
	}
	out, err := breaker.Execute(func() (interface{}, error) {
		return r.caller.CallModel(callCtx, tier, prompt)
	})
	if err != nil {
		return nil, err
	}
	return out.(*entity.ModelReply), nil
}

func (r *ResilientProvider) calculateBackoff(attempt int) time.Duration {
	backoff := float64(r.baseDelay) * float64(int(1)<<attempt)
	jitter := (rand.Float64() * 0.2) * backoff // 20% jitter
	return time.Duration(backoff + jitter)
}
