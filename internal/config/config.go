// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"racha-core/internal/domain/entity"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port       string
	Env        string
	LogLevel   string
	AppVersion string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	QdrantHost        string
	QdrantPort        int
	QdrantCollection  string
	SemanticThreshold float32
	EmbeddingModel    string
	EmbeddingDim      uint64

	GoogleProject  string
	GoogleLocation string
	GeminiAPIKey   string

	Tiers map[entity.ModelTier]entity.TierSpec

	DailyBudgetBRL      decimal.Decimal
	CacheTTL            time.Duration
	ConfidenceThreshold float64
	AITimeout           time.Duration
	RequestTimeout      time.Duration
	BudgetLocation      *time.Location
}

// Load reads .env.dev when present and then the process environment.
func Load(envFile string) (*Config, bool, error) {
	loadedFile := godotenv.Load(envFile) == nil

	var p parser
	cfg := &Config{
		Port:       p.str("PORT", "8080"),
		Env:        p.str("ENV", "development"),
		LogLevel:   p.str("LOG_LEVEL", ""),
		AppVersion: p.str("APP_VERSION", "dev"),

		RedisAddr:     p.str("REDIS_ADDR", ""),
		RedisPassword: p.str("REDIS_PASSWORD", ""),
		RedisDB:       p.integer("REDIS_DB", 0),

		QdrantHost:        p.str("QDRANT_HOST", ""),
		QdrantPort:        p.integer("QDRANT_PORT", 6334),
		QdrantCollection:  p.str("QDRANT_COLLECTION", "expense_interpretations"),
		SemanticThreshold: float32(p.number("SEMANTIC_CACHE_THRESHOLD", 0.95)),
		EmbeddingModel:    p.str("EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDim:      uint64(p.integer("EMBEDDING_DIM", 768)),

		GoogleProject:  p.str("GOOGLE_CLOUD_PROJECT", ""),
		GoogleLocation: p.str("GOOGLE_CLOUD_LOCATION", "us-central1"),
		GeminiAPIKey:   p.str("GEMINI_API_KEY", ""),

		Tiers: map[entity.ModelTier]entity.TierSpec{
			entity.TierFast: {
				Tier:    entity.TierFast,
				Model:   p.str("MODEL_FAST", "gemini-2.5-flash-lite"),
				CostBRL: p.money("COST_FAST_BRL", "0.01"),
				Latency: time.Second,
			},
			entity.TierBalanced: {
				Tier:    entity.TierBalanced,
				Model:   p.str("MODEL_BALANCED", "gemini-2.5-flash"),
				CostBRL: p.money("COST_BALANCED_BRL", "0.05"),
				Latency: 3 * time.Second,
			},
			entity.TierCapable: {
				Tier:    entity.TierCapable,
				Model:   p.str("MODEL_CAPABLE", "gemini-2.5-pro"),
				CostBRL: p.money("COST_CAPABLE_BRL", "0.25"),
				Latency: 8 * time.Second,
			},
		},

		DailyBudgetBRL:      p.money("DAILY_BUDGET_BRL", "20.00"),
		CacheTTL:            p.duration("CACHE_TTL", 24*time.Hour),
		ConfidenceThreshold: p.number("CONFIDENCE_THRESHOLD", 0.8),
		AITimeout:           p.duration("AI_TIMEOUT", 8*time.Second),
		RequestTimeout:      p.duration("REQUEST_TIMEOUT", 10*time.Second),
	}

	tz := p.str("BUDGET_TIMEZONE", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		p.fail("BUDGET_TIMEZONE", tz, err)
	}
	cfg.BudgetLocation = loc

	if p.err != nil {
		return nil, loadedFile, p.err
	}
	if err := cfg.validate(); err != nil {
		return nil, loadedFile, err
	}
	return cfg, loadedFile, nil
}

func (c *Config) validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in (0, 1], got %v", c.ConfidenceThreshold)
	}
	if c.DailyBudgetBRL.IsNegative() {
		return fmt.Errorf("DAILY_BUDGET_BRL must not be negative, got %s", c.DailyBudgetBRL)
	}
	for tier, spec := range c.Tiers {
		if spec.CostBRL.IsNegative() {
			return fmt.Errorf("cost of tier %s must not be negative", tier)
		}
		if spec.Model == "" {
			return fmt.Errorf("tier %s has no model", tier)
		}
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive, got %s", c.AITimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

func (c *Config) Production() bool {
	return c.Env == "production"
}

// parser keeps the first malformed variable it sees.
type parser struct {
	err error
}

func (p *parser) fail(key, val string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, val, err)
	}
}

func (p *parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) number(key string, def float64) float64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) money(key, def string) decimal.Decimal {
	v := p.str(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(key, v, err)
		return decimal.RequireFromString(def)
	}
	return d
}
