package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"racha-core/internal/domain/entity"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Amounts are stored as integer micro-BRL so INCRBY stays exact.
const microUnits = 6

// reserveScript adds ARGV[1] to KEYS[1] only if the result stays within ARGV[2].
var reserveScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local cost = tonumber(ARGV[1])
if cur + cost > tonumber(ARGV[2]) then
  return 0
end
redis.call('INCRBY', KEYS[1], cost)
redis.call('EXPIRE', KEYS[1], ARGV[3])
return 1
`)

// releaseScript leaves an expired day alone so it never comes back without a TTL.
var releaseScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return 0
end
local cur = tonumber(raw)
local next = cur - tonumber(ARGV[1])
if next < 0 then next = 0 end
redis.call('SET', KEYS[1], next, 'KEEPTTL')
return next
`)

// RedisLedger is a BudgetLedger shared by every process using the same Redis.
type RedisLedger struct {
	client    *redis.Client
	capBRL    decimal.Decimal
	retention time.Duration
}

func NewRedisLedger(client *redis.Client, capBRL decimal.Decimal) *RedisLedger {
	return &RedisLedger{
		client:    client,
		capBRL:    capBRL,
		retention: 48 * time.Hour,
	}
}

func budgetKey(day string) string {
	return "budget:" + day
}

func toMicro(d decimal.Decimal) int64 {
	return d.Shift(microUnits).Ceil().IntPart()
}

func fromMicro(n int64) decimal.Decimal {
	return decimal.New(n, -microUnits)
}

func (r *RedisLedger) Reserve(ctx context.Context, day string, cost decimal.Decimal) (bool, error) {
	ok, err := reserveScript.Run(ctx, r.client, []string{budgetKey(day)},
		toMicro(cost), r.capBRL.Shift(microUnits).IntPart(), int64(r.retention.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("reserve budget: %w", err)
	}
	return ok == 1, nil
}

func (r *RedisLedger) Release(ctx context.Context, day string, cost decimal.Decimal) error {
	if err := releaseScript.Run(ctx, r.client, []string{budgetKey(day)}, toMicro(cost)).Err(); err != nil {
		return fmt.Errorf("release budget: %w", err)
	}
	return nil
}

func (r *RedisLedger) Snapshot(ctx context.Context, day string) (entity.BudgetLedger, error) {
	l := entity.BudgetLedger{Date: day, SpentBRL: decimal.Zero, CapBRL: r.capBRL}
	n, err := r.client.Get(ctx, budgetKey(day)).Int64()
	if errors.Is(err, redis.Nil) {
		return l, nil
	}
	if err != nil {
		return l, fmt.Errorf("read budget: %w", err)
	}
	l.SpentBRL = fromMicro(n)
	return l, nil
}
