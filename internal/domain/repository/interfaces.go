package repository

import (
	"context"

	"racha-core/internal/domain/entity"

	"github.com/shopspring/decimal"
)

// ModelCaller calls one AI tier with a prompt.
type ModelCaller interface {
	CallModel(ctx context.Context, tier entity.ModelTier, prompt string) (*entity.ModelReply, error)
}

// CacheStore maps a request fingerprint to a cached answer.
// Get returns (nil, nil) on a miss or an expired entry.
type CacheStore interface {
	Get(ctx context.Context, fingerprint string) (*entity.CacheEntry, error)
	Put(ctx context.Context, entry *entity.CacheEntry) error
}

// SemanticCache finds answers to differently worded but equivalent requests.
type SemanticCache interface {
	Search(ctx context.Context, vector []float32, key entity.SemanticKey) (*entity.CacheEntry, float32, error)
	Save(ctx context.Context, vector []float32, key entity.SemanticKey, entry *entity.CacheEntry) error
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// BudgetLedger tracks the daily AI spend. Reserve is an atomic
// compare-and-increment: it adds cost only if the day's spend stays within the cap.
type BudgetLedger interface {
	Reserve(ctx context.Context, day string, cost decimal.Decimal) (bool, error)
	Release(ctx context.Context, day string, cost decimal.Decimal) error
	Snapshot(ctx context.Context, day string) (entity.BudgetLedger, error)
}
