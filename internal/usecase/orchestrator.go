package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"racha-core/internal/domain/entity"
	"racha-core/internal/domain/repository"
	"racha-core/internal/metrics"
	"racha-core/internal/parser"
	"racha-core/internal/split"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MaxTextBytes bounds the utterance accepted by Interpret.
const MaxTextBytes = 4096

// Deps are the collaborators of an Orchestrator. Semantic and Embedder are
// optional; without them only exact-fingerprint caching is used.
type Deps struct {
	Router   *ModelRouter
	Cache    repository.CacheStore
	Ledger   repository.BudgetLedger
	Semantic repository.SemanticCache
	Embedder repository.Embedder
	Log      *zap.Logger
}

type Settings struct {
	Threshold float64
	// BackgroundTimeout bounds AI work that outlives its caller.
	BackgroundTimeout time.Duration
	Location          *time.Location
}

// Orchestrator answers interpret requests: the parser first, then the cache,
// then the AI tiers behind the budget guard.
type Orchestrator struct {
	resolver *parser.Resolver
	router   *ModelRouter
	cache    repository.CacheStore
	ledger   repository.BudgetLedger
	semantic repository.SemanticCache
	embedder repository.Embedder

	threshold float64
	bgTimeout time.Duration
	location  *time.Location
	now       func() time.Time
	log       *zap.Logger

	inflight sync.WaitGroup
	flights  singleflight.Group
}

func NewOrchestrator(d Deps, s Settings) *Orchestrator {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	if s.BackgroundTimeout <= 0 {
		s.BackgroundTimeout = 30 * time.Second
	}
	u := &Orchestrator{
		resolver:  parser.NewResolver(),
		router:    d.Router,
		cache:     d.Cache,
		ledger:    d.Ledger,
		threshold: s.Threshold,
		bgTimeout: s.BackgroundTimeout,
		location:  loc,
		now:       time.Now,
		log:       log.Named("orchestrator"),
	}
	if d.Semantic != nil && d.Embedder != nil {
		u.semantic = d.Semantic
		u.embedder = d.Embedder
	}
	return u
}

// Interpret never fails because of the text itself: unusable input yields a
// zero or low confidence answer. The only error is ErrInvalidRequest.
func (u *Orchestrator) Interpret(ctx context.Context, req entity.InterpretRequest) (*entity.InterpretResult, error) {
	start := time.Now()
	if len(req.Text) > MaxTextBytes {
		return nil, fmt.Errorf("%w: text longer than %d bytes", entity.ErrInvalidRequest, MaxTextBytes)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	res := u.interpret(ctx, req)
	res.RequestID = req.RequestID

	metrics.InterpretRequests.WithLabelValues(string(res.Path)).Inc()
	metrics.InterpretDuration.WithLabelValues(string(res.Path)).Observe(time.Since(start).Seconds())
	u.log.Info("interpreted",
		zap.String("request_id", req.RequestID),
		zap.String("path", string(res.Path)),
		zap.String("tier", string(res.Tier)),
		zap.String("method", string(res.Interpretation.Method)),
		zap.Float64("confidence", res.Interpretation.Confidence),
		zap.Bool("budget_exceeded", res.BudgetExceeded),
		zap.Bool("degraded", res.Degraded),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

func (u *Orchestrator) interpret(ctx context.Context, req entity.InterpretRequest) *entity.InterpretResult {
	participants, explicit := knownParticipants(req)
	local := u.resolver.Resolve(req.Text, participants, req.Context)

	if strings.TrimSpace(req.Text) == "" {
		return &entity.InterpretResult{
			Interpretation: local,
			SplitError:     entity.SplitErrorCode(entity.ErrInput),
			Path:           entity.PathDeterministic,
		}
	}
	if local.Confidence >= u.threshold {
		return u.result(answer(local, req.Split), entity.PathDeterministic)
	}

	normalized := parser.Normalize(req.Text)
	fp := Fingerprint(normalized, req, local)
	if entry := u.lookup(ctx, fp); entry != nil {
		res := u.result(entry.Answer, entity.PathCache)
		res.Tier = entry.Tier
		res.Cached = true
		return res
	}

	key := semanticKey(normalized, req, local)
	vector := u.embed(ctx, normalized)
	if entry := u.semanticLookup(ctx, vector, key, local); entry != nil {
		// the wording matched; the split is redone for this request's people
		in := entry.Answer.Interpretation
		if len(local.Participants) > 0 {
			in.Participants = local.Participants
			in.Headcount = len(local.Participants)
		}
		in.Confidence = math.Min(in.Confidence, parser.Confidence(in.HasAmount(),
			in.Scenario != entity.ScenarioUnknown, in.Method != entity.MethodUnknown, len(in.Participants)))
		cached := &entity.CacheEntry{Fingerprint: fp, Answer: answer(in, req.Split), Tier: entry.Tier, CreatedAt: u.now()}
		u.put(ctx, cached)
		res := u.result(cached.Answer, entity.PathSemanticCache)
		res.Tier = entry.Tier
		res.Cached = true
		return res
	}

	job := routeJob{
		requestID:  req.RequestID,
		normalized: normalized,
		day:        u.today(),
		local:      local,
		explicit:   explicit,
		req:        req,
	}
	fl, ok := u.escalate(ctx, job, fp, key, vector)
	if !ok {
		// caller gave up or timed out; the AI work finishes in the background
		res := u.result(answer(local, req.Split), entity.PathFallback)
		res.Degraded = true
		return res
	}
	if fl.cached {
		// an identical request paid for this answer
		res := u.result(fl.ans, entity.PathCache)
		res.Tier = fl.out.tier
		res.Cached = true
		return res
	}
	out := fl.out
	path := entity.PathAI
	if !out.answered {
		path = entity.PathFallback
	}
	res := u.result(fl.ans, path)
	res.Tier = out.tier
	res.AICalls = out.calls
	res.BudgetExceeded = out.budgetExceeded
	res.Degraded = out.degraded
	return res
}

type flight struct {
	out    routeOutcome
	ans    entity.CachedAnswer
	cached bool
}

// escalate runs the router on a context detached from the caller so that a
// paid call in flight still lands in the cache after the caller has gone.
// Concurrent requests with the same fingerprint share one routing.
func (u *Orchestrator) escalate(ctx context.Context, job routeJob, fp string, key entity.SemanticKey, vector []float32) (flight, bool) {
	if ctx.Err() != nil {
		return flight{}, false
	}
	ch := make(chan flight, 1)

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.bgTimeout)
	u.inflight.Add(1)
	go func() {
		defer u.inflight.Done()
		defer cancel()

		led := false
		v, _, _ := u.flights.Do(fp, func() (any, error) {
			led = true
			return u.route(bg, job, fp, key, vector), nil
		})
		fl := v.(flight)
		if !led && fl.out.answered {
			fl.cached = true
			fl.out.calls = 0
		}
		ch <- fl
	}()

	select {
	case fl := <-ch:
		return fl, true
	case <-ctx.Done():
		u.log.Info("caller left before the model answered",
			zap.String("request_id", job.requestID), zap.Error(ctx.Err()))
		return flight{}, false
	}
}

func (u *Orchestrator) route(ctx context.Context, job routeJob, fp string, key entity.SemanticKey, vector []float32) flight {
	// a flight for this fingerprint may have landed since the lookup
	if entry, err := u.cache.Get(ctx, fp); err == nil && entry != nil {
		return flight{
			out:    routeOutcome{interp: entry.Answer.Interpretation, tier: entry.Tier, answered: true},
			ans:    entry.Answer,
			cached: true,
		}
	}

	out := u.router.Route(ctx, job)
	ans := answer(out.interp, job.req.Split)
	if out.answered {
		entry := &entity.CacheEntry{Fingerprint: fp, Answer: ans, Tier: out.tier, CreatedAt: u.now()}
		u.put(ctx, entry)
		u.semanticSave(ctx, vector, key, entry)
	}
	return flight{out: out, ans: ans}
}

// Wait blocks until background AI work has finished.
func (u *Orchestrator) Wait() {
	u.inflight.Wait()
}

// Budget reports today's ledger.
func (u *Orchestrator) Budget(ctx context.Context) (entity.BudgetLedger, error) {
	return u.ledger.Snapshot(ctx, u.today())
}

func (u *Orchestrator) today() string {
	return u.now().In(u.location).Format(time.DateOnly)
}

func (u *Orchestrator) result(a entity.CachedAnswer, path entity.Path) *entity.InterpretResult {
	return &entity.InterpretResult{
		Interpretation: a.Interpretation,
		Split:          a.Split,
		SplitError:     a.SplitError,
		Path:           path,
	}
}

func (u *Orchestrator) lookup(ctx context.Context, fp string) *entity.CacheEntry {
	entry, err := u.cache.Get(ctx, fp)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("exact", "error").Inc()
		u.log.Warn("cache lookup failed", zap.Error(err))
		return nil
	case entry == nil:
		metrics.CacheLookups.WithLabelValues("exact", "miss").Inc()
		return nil
	}
	metrics.CacheLookups.WithLabelValues("exact", "hit").Inc()
	return entry
}

func (u *Orchestrator) put(ctx context.Context, entry *entity.CacheEntry) {
	if err := u.cache.Put(ctx, entry); err != nil {
		u.log.Warn("cache write failed", zap.String("fingerprint", entry.Fingerprint), zap.Error(err))
	}
}

func (u *Orchestrator) embed(ctx context.Context, normalized string) []float32 {
	if u.embedder == nil {
		return nil
	}
	vector, err := u.embedder.CreateEmbedding(ctx, normalized)
	if err != nil {
		u.log.Warn("embedding failed, skipping semantic cache", zap.Error(err))
		return nil
	}
	return vector
}

// semanticLookup only accepts answers that agree with the scenario and method
// the text itself settled.
func (u *Orchestrator) semanticLookup(ctx context.Context, vector []float32, key entity.SemanticKey, local entity.Interpretation) *entity.CacheEntry {
	if u.semantic == nil || vector == nil {
		return nil
	}
	entry, score, err := u.semantic.Search(ctx, vector, key)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("semantic", "error").Inc()
		u.log.Warn("semantic lookup failed", zap.Error(err))
		return nil
	case entry == nil:
		metrics.CacheLookups.WithLabelValues("semantic", "miss").Inc()
		return nil
	case !agrees(entry.Answer.Interpretation, local):
		metrics.CacheLookups.WithLabelValues("semantic", "mismatch").Inc()
		u.log.Debug("semantic cache hit contradicts the text", zap.Float32("score", score))
		return nil
	}
	metrics.CacheLookups.WithLabelValues("semantic", "hit").Inc()
	u.log.Debug("semantic cache hit", zap.Float32("score", score))
	return entry
}

func (u *Orchestrator) semanticSave(ctx context.Context, vector []float32, key entity.SemanticKey, entry *entity.CacheEntry) {
	if u.semantic == nil || vector == nil {
		return
	}
	if err := u.semantic.Save(ctx, vector, key, entry); err != nil {
		u.log.Warn("semantic cache write failed", zap.Error(err))
	}
}

func agrees(cached, local entity.Interpretation) bool {
	if local.Scenario != entity.ScenarioUnknown && cached.Scenario != local.Scenario {
		return false
	}
	return local.Method == entity.MethodUnknown || cached.Method == local.Method
}

// answer computes the split for an interpretation. Split failures are part
// of the answer, not errors of the request.
func answer(in entity.Interpretation, inputs entity.SplitInputs) entity.CachedAnswer {
	a := entity.CachedAnswer{Interpretation: in}
	res, err := split.Calculate(in, inputs)
	if err != nil {
		a.SplitError = entity.SplitErrorCode(err)
		return a
	}
	a.Split = res
	return a
}

// knownParticipants are the people the caller named, directly or through the
// structured split inputs. Free text is never mined for names.
func knownParticipants(req entity.InterpretRequest) ([]string, bool) {
	if names := parser.UniqueParticipants(req.Participants); len(names) > 0 {
		return names, true
	}
	var names []string
	for _, f := range req.Split.Families {
		names = append(names, f.Members...)
	}
	consumers := make([]string, 0, len(req.Split.Consumption))
	for name := range req.Split.Consumption {
		consumers = append(consumers, name)
	}
	sort.Strings(consumers)
	names = parser.UniqueParticipants(append(names, consumers...))
	return names, len(names) > 0
}
