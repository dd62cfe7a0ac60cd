package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"racha-core/internal/domain/entity"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func share(t *testing.T, res *entity.InterpretResult, who string) decimal.Decimal {
	t.Helper()
	require.NotNil(t, res.Split, "split error %q", res.SplitError)
	got, ok := res.Split.ShareOf(who)
	require.True(t, ok, who)
	return got
}

const groupReply = `{"scenario":"restaurante","method":"equal","participants":["Ana","Bia","Caio"],"confidence":0.9}`

func TestInterpretDeterministicScenarios(t *testing.T) {
	f := newFixture(t, newFakeCaller(), "10")
	ctx := context.Background()

	t.Run("rodizio", func(t *testing.T) {
		res, err := f.orch.Interpret(ctx, entity.InterpretRequest{Text: "Rodízio de pizza. R$ 120,00 para 4 pessoas. Cada um paga igual."})
		require.NoError(t, err)
		assert.Equal(t, entity.PathDeterministic, res.Path)
		assert.Equal(t, entity.ScenarioRodizio, res.Interpretation.Scenario)
		assert.Equal(t, entity.MethodEqual, res.Interpretation.Method)
		assert.True(t, dec("120").Equal(res.Interpretation.Amount))
		require.Len(t, res.Split.Shares, 4)
		for _, s := range res.Split.Shares {
			assert.True(t, dec("30.00").Equal(s.Amount))
		}
		assert.NotEmpty(t, res.RequestID)
	})

	t.Run("happy hour without consumption", func(t *testing.T) {
		res, err := f.orch.Interpret(ctx, entity.InterpretRequest{
			Text:         "Happy hour no bar. R$ 200,00. Cada um paga o que consumiu.",
			Participants: []string{"Ana", "Bia", "Caio"},
		})
		require.NoError(t, err)
		assert.Equal(t, entity.MethodByConsumption, res.Interpretation.Method)
		assert.True(t, dec("200").Equal(res.Interpretation.Amount))
		assert.Nil(t, res.Split)
		assert.Equal(t, "insufficient_data", res.SplitError)
	})

	t.Run("host pays", func(t *testing.T) {
		res, err := f.orch.Interpret(ctx, entity.InterpretRequest{
			Text:         "Eu pago agora, depois acertamos. R$ 250,00.",
			Participants: []string{"Eu", "Ana", "Bia", "Caio", "Duda"},
		})
		require.NoError(t, err)
		assert.Equal(t, entity.MethodHostPays, res.Interpretation.Method)
		assert.True(t, share(t, res, "Eu").IsZero())
		for _, p := range []string{"Ana", "Bia", "Caio", "Duda"} {
			assert.True(t, dec("62.50").Equal(share(t, res, p)), p)
		}
	})

	assert.Empty(t, f.caller.Calls())
	assert.True(t, f.spent(t).IsZero())
}

func TestInterpretBlankText(t *testing.T) {
	f := newFixture(t, newFakeCaller(), "10")
	res, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{Text: "   "})
	require.NoError(t, err)
	assert.Zero(t, res.Interpretation.Confidence)
	assert.Equal(t, "invalid_input", res.SplitError)
	assert.Empty(t, f.caller.Calls())
}

func TestInterpretRejectsHugeText(t *testing.T) {
	f := newFixture(t, newFakeCaller(), "10")
	_, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{Text: strings.Repeat("a", MaxTextBytes+1)})
	assert.ErrorIs(t, err, entity.ErrInvalidRequest)
}

func TestInterpretFastTierAnswers(t *testing.T) {
	f := newFixture(t, newFakeCaller().reply(entity.TierFast, groupReply, 0.9), "10")
	res, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{Text: "Jantar com a galera, R$ 90,00"})
	require.NoError(t, err)

	assert.Equal(t, entity.PathAI, res.Path)
	assert.Equal(t, entity.TierFast, res.Tier)
	assert.Equal(t, 1, res.AICalls)
	assert.False(t, res.Cached)
	assert.Equal(t, entity.MethodEqual, res.Interpretation.Method)
	assert.Equal(t, []string{"Ana", "Bia", "Caio"}, res.Interpretation.Participants)
	assert.InDelta(t, 0.9, res.Interpretation.Confidence, 1e-9)
	assert.True(t, dec("30").Equal(share(t, res, "Bia")))
	assert.True(t, dec("0.01").Equal(f.spent(t)))
	assert.Equal(t, 1, f.cache.Len())
}

func TestInterpretCacheHitIsIdempotent(t *testing.T) {
	f := newFixture(t, newFakeCaller().reply(entity.TierFast, groupReply, 0.9), "10")
	req := entity.InterpretRequest{Text: "Jantar com a galera, R$ 90,00", Context: entity.CulturalContext{Region: "SP"}}

	first, err := f.orch.Interpret(context.Background(), req)
	require.NoError(t, err)
	second, err := f.orch.Interpret(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, entity.PathCache, second.Path)
	assert.True(t, second.Cached)
	assert.Equal(t, entity.TierFast, second.Tier)
	assert.Len(t, f.caller.Calls(), 1)
	assert.True(t, dec("0.01").Equal(f.spent(t)), "cache hits are not billed")

	for _, pair := range [][2]any{
		{first.Interpretation, second.Interpretation},
		{first.Split, second.Split},
	} {
		a, err := json.Marshal(pair[0])
		require.NoError(t, err)
		b, err := json.Marshal(pair[1])
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	}

	third, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{Text: req.Text, Participants: []string{"X", "Y"}})
	require.NoError(t, err)
	assert.NotEqual(t, entity.PathCache, third.Path, "different participants are a different request")
}

func TestInterpretEscalation(t *testing.T) {
	lowish := `{"method":"","confidence":0.5}`
	tests := []struct {
		name     string
		fastConf float64
		want     entity.ModelTier
		spent    string
	}{
		{"unsure fast goes to balanced", 0.5, entity.TierBalanced, "0.06"},
		{"lost fast goes to capable", 0.1, entity.TierCapable, "0.26"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := newFakeCaller().
				reply(entity.TierFast, lowish, tt.fastConf).
				reply(tt.want, groupReply, 0.95)
			f := newFixture(t, caller, "10")

			res, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{Text: "Jantar com a galera, R$ 90,00"})
			require.NoError(t, err)
			assert.Equal(t, []entity.ModelTier{entity.TierFast, tt.want}, caller.Calls())
			assert.Equal(t, tt.want, res.Tier)
			assert.Equal(t, 2, res.AICalls)
			assert.GreaterOrEqual(t, res.Interpretation.Confidence, 0.8)
			assert.True(t, dec(tt.spent).Equal(f.spent(t)), "spent %s", f.spent(t))
		})
	}
}

func TestInterpretNeverMoreThanTwoTierCalls(t *testing.T) {
	weak := `{"method":"equal","confidence":0.6}`
	caller := newFakeCaller().reply(entity.TierFast, weak, 0.6).reply(entity.TierBalanced, weak, 0.6)
	f := newFixture(t, caller, "10")

	res, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{Text: "Jantar com a galera, R$ 90,00"})
	require.NoError(t, err)
	assert.Len(t, caller.Calls(), 2)
	assert.Equal(t, entity.PathAI, res.Path)
	// no participants known, so the best answer stays capped
	assert.LessOrEqual(t, res.Interpretation.Confidence, 0.5)
	assert.Equal(t, "insufficient_data", res.SplitError)
}

func TestInterpretBudgetExceeded(t *testing.T) {
	t.Run("no budget at all", func(t *testing.T) {
		f := newFixture(t, newFakeCaller().reply(entity.TierFast, groupReply, 0.9), "0")
		res, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{Text: "Jantar com a galera, R$ 90,00"})
		require.NoError(t, err)
		assert.True(t, res.BudgetExceeded)
		assert.Equal(t, entity.PathFallback, res.Path)
		assert.Empty(t, f.caller.Calls())
		assert.True(t, dec("90").Equal(res.Interpretation.Amount))
		assert.Zero(t, f.cache.Len())
	})

	t.Run("escalation refused", func(t *testing.T) {
		caller := newFakeCaller().
			reply(entity.TierFast, `{"method":"equal","confidence":0.5}`, 0.5).
			reply(entity.TierBalanced, groupReply, 0.9)
		f := newFixture(t, caller, "0.03")
		res, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{Text: "Jantar com a galera, R$ 90,00"})
		require.NoError(t, err)
		assert.True(t, res.BudgetExceeded)
		assert.Equal(t, []entity.ModelTier{entity.TierFast}, caller.Calls())
		assert.Equal(t, entity.MethodEqual, res.Interpretation.Method)
		assert.True(t, dec("0.01").Equal(f.spent(t)))
	})
}

func TestInterpretProviderFailureDegrades(t *testing.T) {
	f := newFixture(t, newFakeCaller().fail(entity.TierFast), "10")
	res, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{Text: "Jantar com a galera, R$ 90,00"})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, entity.PathFallback, res.Path)
	assert.Equal(t, []entity.ModelTier{entity.TierFast, entity.TierFast}, f.caller.Calls(), "retried once on the same tier")
	assert.True(t, f.spent(t).IsZero(), "failed calls are not billed")
	assert.Zero(t, f.cache.Len())
	assert.True(t, dec("90").Equal(res.Interpretation.Amount))
}

func TestInterpretRetrySucceeds(t *testing.T) {
	caller := newFakeCaller()
	var mu sync.Mutex
	failures := 1
	caller.answers[entity.TierFast] = func(context.Context) (*entity.ModelReply, error) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, errBoom
		}
		return &entity.ModelReply{Tier: entity.TierFast, Content: groupReply, ModelConfidence: 0.9}, nil
	}
	f := newFixture(t, caller, "10")

	res, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{Text: "Jantar com a galera, R$ 90,00"})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, entity.PathAI, res.Path)
	assert.Len(t, caller.Calls(), 2)
	assert.True(t, dec("0.01").Equal(f.spent(t)))
}

func TestInterpretConcurrentRequestsRespectCap(t *testing.T) {
	f := newFixture(t, newFakeCaller().reply(entity.TierFast, groupReply, 0.9), "0.10")

	const n = 50
	results := make([]*entity.InterpretResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{
				Text: fmt.Sprintf("Jantar número %d, R$ 90,00", i),
			})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	answered, refused := 0, 0
	for _, res := range results {
		if res.BudgetExceeded {
			refused++
		}
		if res.Path == entity.PathAI {
			answered++
		}
	}
	assert.Equal(t, 10, answered)
	assert.Equal(t, n-10, refused)
	ledger, err := f.orch.Budget(context.Background())
	require.NoError(t, err)
	assert.True(t, ledger.SpentBRL.LessThanOrEqual(ledger.CapBRL))
	assert.True(t, dec("0.10").Equal(ledger.SpentBRL))
}

func TestInterpretCallerAbortStillFillsCache(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	caller := newFakeCaller()
	caller.answers[entity.TierFast] = func(context.Context) (*entity.ModelReply, error) {
		close(started)
		<-release
		return &entity.ModelReply{Tier: entity.TierFast, Content: groupReply, ModelConfidence: 0.9}, nil
	}
	f := newFixture(t, caller, "10")
	req := entity.InterpretRequest{Text: "Jantar com a galera, R$ 90,00"}

	ctx, cancel := context.WithCancel(context.Background())
	resCh := make(chan *entity.InterpretResult, 1)
	go func() {
		res, err := f.orch.Interpret(ctx, req)
		assert.NoError(t, err)
		resCh <- res
	}()

	<-started
	cancel()
	res := <-resCh
	assert.True(t, res.Degraded)
	assert.Equal(t, entity.PathFallback, res.Path)
	assert.Empty(t, res.Interpretation.Participants, "the model answer is not delivered to the aborted caller")

	close(release)
	f.orch.Wait()
	assert.Equal(t, 1, f.cache.Len())

	again, err := f.orch.Interpret(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, entity.PathCache, again.Path)
	assert.Equal(t, []string{"Ana", "Bia", "Caio"}, again.Interpretation.Participants)
	assert.Len(t, caller.Calls(), 1)
}

func TestInterpretCallerDeadlineFallsBack(t *testing.T) {
	release := make(chan struct{})
	caller := newFakeCaller()
	caller.answers[entity.TierFast] = func(context.Context) (*entity.ModelReply, error) {
		<-release
		return &entity.ModelReply{Tier: entity.TierFast, Content: groupReply, ModelConfidence: 0.9}, nil
	}
	f := newFixture(t, caller, "10")
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := f.orch.Interpret(ctx, entity.InterpretRequest{Text: "Jantar com a galera, R$ 90,00"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.True(t, dec("90").Equal(res.Interpretation.Amount))
}

func TestInterpretSemanticCacheHit(t *testing.T) {
	caller := newFakeCaller()
	f := newFixture(t, caller, "10")
	sem := &fakeSemantic{hit: &entity.CacheEntry{
		Fingerprint: "other",
		Tier:        entity.TierBalanced,
		Answer: entity.CachedAnswer{Interpretation: entity.Interpretation{
			Scenario: entity.ScenarioRestaurante, Method: entity.MethodEqual, Amount: dec("90"),
			Participants: []string{"Old1", "Old2"}, Confidence: 0.85,
		}},
	}}
	f.orch.semantic = sem
	f.orch.embedder = fakeEmbedder{}

	res, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{
		Text:         "jantarzinho, deu R$ 90,00 no total",
		Participants: []string{"Ana"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.PathSemanticCache, res.Path)
	assert.True(t, res.Cached)
	assert.Equal(t, entity.TierBalanced, res.Tier)
	assert.Equal(t, []string{"Ana"}, res.Interpretation.Participants)
	assert.InDelta(t, 0.5, res.Interpretation.Confidence, 1e-9, "one person is not a known group")
	assert.True(t, dec("90").Equal(share(t, res, "Ana")))
	assert.Empty(t, caller.Calls())
	assert.Equal(t, 1, f.cache.Len())
	require.Len(t, sem.keys, 1)
	assert.Equal(t, "90.00", sem.keys[0].Amount)
	assert.Equal(t, 1, sem.keys[0].ParticipantCount)
	assert.Equal(t, "restaurante", sem.keys[0].Scenario)
	assert.Empty(t, sem.keys[0].Method)
}

func TestInterpretSemanticHitMustAgreeWithText(t *testing.T) {
	f := newFixture(t, newFakeCaller(), "0")
	sem := &fakeSemantic{hit: &entity.CacheEntry{
		Fingerprint: "other",
		Tier:        entity.TierFast,
		Answer: entity.CachedAnswer{Interpretation: entity.Interpretation{
			Scenario: entity.ScenarioHappyHour, Method: entity.MethodEqual, Amount: dec("200"),
			Participants: []string{"Ana"}, Confidence: 0.9,
		}},
	}}
	f.orch.semantic = sem
	f.orch.embedder = fakeEmbedder{}

	res, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{
		Text:         "Happy hour no bar. R$ 200,00. Cada um paga o que consumiu.",
		Participants: []string{"Ana"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, entity.PathSemanticCache, res.Path)
	assert.Equal(t, entity.MethodByConsumption, res.Interpretation.Method)
	assert.Equal(t, "insufficient_data", res.SplitError)
	assert.Nil(t, res.Split)
	assert.LessOrEqual(t, res.Interpretation.Confidence, 0.5)
	require.Len(t, sem.keys, 1)
	assert.Equal(t, "by_consumption", sem.keys[0].Method)
	assert.Zero(t, f.cache.Len())
}

func TestInterpretIdenticalRequestsPayOnce(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	caller := newFakeCaller()
	var once sync.Once
	caller.answers[entity.TierFast] = func(context.Context) (*entity.ModelReply, error) {
		once.Do(func() { close(started) })
		<-release
		return &entity.ModelReply{Tier: entity.TierFast, Content: groupReply, ModelConfidence: 0.9}, nil
	}
	f := newFixture(t, caller, "10")
	req := entity.InterpretRequest{Text: "Jantar com a galera, R$ 90,00"}

	var wg sync.WaitGroup
	results := make([]*entity.InterpretResult, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.orch.Interpret(context.Background(), req)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	<-started
	close(release)
	wg.Wait()

	assert.Len(t, caller.Calls(), 1)
	assert.True(t, dec("0.01").Equal(f.spent(t)))
	paid := 0
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, []string{"Ana", "Bia", "Caio"}, res.Interpretation.Participants)
		paid += res.AICalls
	}
	assert.Equal(t, 1, paid)
}

func TestInterpretSavesToSemanticCache(t *testing.T) {
	f := newFixture(t, newFakeCaller().reply(entity.TierFast, groupReply, 0.9), "10")
	sem := &fakeSemantic{}
	f.orch.semantic = sem
	f.orch.embedder = fakeEmbedder{}

	_, err := f.orch.Interpret(context.Background(), entity.InterpretRequest{Text: "Jantar com a galera, R$ 90,00"})
	require.NoError(t, err)
	f.orch.Wait()
	require.Len(t, sem.saved, 1)
	assert.Equal(t, "jantar com a galera, r$ 90,00", sem.saved[0].NormalizedText)
}

func TestBudgetUsesSaoPauloDay(t *testing.T) {
	f := newFixture(t, newFakeCaller(), "10")
	f.orch.now = func() time.Time { return time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC) }
	l, err := f.orch.Budget(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", l.Date)
	assert.True(t, dec("10").Equal(l.CapBRL))
}
