package entity

// Path tells how an InterpretResult was produced.
type Path string

const (
	PathDeterministic Path = "deterministic"
	PathCache         Path = "cache"
	PathSemanticCache Path = "semantic_cache"
	PathAI            Path = "ai"
	PathFallback      Path = "fallback"
)

type InterpretResult struct {
	RequestID      string         `json:"request_id"`
	Interpretation Interpretation `json:"interpretation"`
	Split          *SplitResult   `json:"split,omitempty"`
	SplitError     string         `json:"split_error,omitempty"`
	Tier           ModelTier      `json:"tier"`
	Path           Path           `json:"path"`
	Cached         bool           `json:"cached"`
	BudgetExceeded bool           `json:"budget_exceeded"`
	Degraded       bool           `json:"degraded"`
	AICalls        int            `json:"ai_calls"`
}
