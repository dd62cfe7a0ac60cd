package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ModelTier is a cost/quality level of AI model.
type ModelTier string

const (
	TierNone     ModelTier = ""
	TierFast     ModelTier = "FAST"
	TierBalanced ModelTier = "BALANCED"
	TierCapable  ModelTier = "CAPABLE"
)

// TierSpec describes one tier: the concrete model behind it, its per-call
// cost estimate in BRL and how long a call usually takes.
type TierSpec struct {
	Tier    ModelTier
	Model   string
	CostBRL decimal.Decimal
	Latency time.Duration
}

// ModelReply is what a tier returns. Content is the raw model output.
type ModelReply struct {
	Tier            ModelTier `json:"tier"`
	Model           string    `json:"model"`
	Content         string    `json:"content"`
	ModelConfidence float64   `json:"model_confidence"`
	TokenCount      int       `json:"token_count"`
	LatencyMS       int64     `json:"latency_ms"`
}
