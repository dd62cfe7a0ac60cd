package entity

import "time"

// CachedAnswer is the part of an interpretation result worth replaying.
type CachedAnswer struct {
	Interpretation Interpretation `json:"interpretation"`
	Split          *SplitResult   `json:"split,omitempty"`
	SplitError     string         `json:"split_error,omitempty"`
}

// CacheEntry is written once after a successful paid call and never mutated.
type CacheEntry struct {
	Fingerprint string       `json:"fingerprint"`
	Answer      CachedAnswer `json:"answer"`
	Tier        ModelTier    `json:"tier"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (e *CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(e.CreatedAt) >= ttl
}

// SemanticKey holds the exact-match constraints a semantic lookup must honor.
type SemanticKey struct {
	NormalizedText   string
	Amount           string
	ParticipantCount int
	ScenarioHint     string
	// Scenario and Method are what the text itself settled; empty when unknown.
	Scenario string
	Method   string
}
