package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"racha-core/internal/adapter/store"
	"racha-core/internal/domain/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testTiers = map[entity.ModelTier]entity.TierSpec{
	entity.TierFast:     {Tier: entity.TierFast, Model: "fast", CostBRL: decimal.RequireFromString("0.01")},
	entity.TierBalanced: {Tier: entity.TierBalanced, Model: "balanced", CostBRL: decimal.RequireFromString("0.05")},
	entity.TierCapable:  {Tier: entity.TierCapable, Model: "capable", CostBRL: decimal.RequireFromString("0.25")},
}

var errBoom = errors.New("503 overloaded")

// fakeCaller answers per tier with a canned reply or error.
type fakeCaller struct {
	mu      sync.Mutex
	calls   []entity.ModelTier
	answers map[entity.ModelTier]func(ctx context.Context) (*entity.ModelReply, error)
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{answers: make(map[entity.ModelTier]func(context.Context) (*entity.ModelReply, error))}
}

func (f *fakeCaller) reply(tier entity.ModelTier, content string, confidence float64) *fakeCaller {
	f.answers[tier] = func(context.Context) (*entity.ModelReply, error) {
		return &entity.ModelReply{Tier: tier, Model: string(tier), Content: content, ModelConfidence: confidence}, nil
	}
	return f
}

func (f *fakeCaller) fail(tier entity.ModelTier) *fakeCaller {
	f.answers[tier] = func(context.Context) (*entity.ModelReply, error) { return nil, errBoom }
	return f
}

func (f *fakeCaller) CallModel(ctx context.Context, tier entity.ModelTier, _ string) (*entity.ModelReply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, tier)
	answer, ok := f.answers[tier]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("unexpected tier " + string(tier))
	}
	return answer(ctx)
}

func (f *fakeCaller) Calls() []entity.ModelTier {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.ModelTier(nil), f.calls...)
}

type fixture struct {
	orch   *Orchestrator
	caller *fakeCaller
	cache  *store.MemoryCache
	ledger *store.MemoryLedger
}

func newFixture(t *testing.T, caller *fakeCaller, capBRL string) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	cache := store.NewMemoryCache(24 * time.Hour)
	ledger := store.NewMemoryLedger(decimal.RequireFromString(capBRL))
	provider := NewResilientProvider(caller, time.Second, nil)
	provider.baseDelay = time.Millisecond
	router := NewModelRouter(provider, ledger, testTiers, 0.8, nil)
	orch := NewOrchestrator(
		Deps{Router: router, Cache: cache, Ledger: ledger},
		Settings{Threshold: 0.8, BackgroundTimeout: 5 * time.Second, Location: loc},
	)
	t.Cleanup(orch.Wait)
	return &fixture{orch: orch, caller: caller, cache: cache, ledger: ledger}
}

func (f *fixture) spent(t *testing.T) decimal.Decimal {
	t.Helper()
	l, err := f.orch.Budget(context.Background())
	require.NoError(t, err)
	return l.SpentBRL
}

type fakeEmbedder struct{ err error }

func (e fakeEmbedder) CreateEmbedding(context.Context, string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeSemantic struct {
	mu    sync.Mutex
	hit   *entity.CacheEntry
	saved []entity.SemanticKey
	keys  []entity.SemanticKey
}

func (s *fakeSemantic) Search(_ context.Context, _ []float32, key entity.SemanticKey) (*entity.CacheEntry, float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	if s.hit == nil {
		return nil, 0, nil
	}
	return s.hit, 0.97, nil
}

func (s *fakeSemantic) Save(_ context.Context, _ []float32, key entity.SemanticKey, _ *entity.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, key)
	return nil
}
