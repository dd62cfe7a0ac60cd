package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"racha-core/internal/domain/entity"

	"google.golang.org/genai"
)

const systemInstruction = `Você interpreta descrições de despesas compartilhadas escritas em português do Brasil.
Responda SOMENTE com um objeto JSON, sem explicações.`

// NewGenAIClient picks the Gemini API backend when an API key is given and Vertex AI otherwise.
func NewGenAIClient(ctx context.Context, apiKey, projectID, location string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	}
	if apiKey != "" {
		cfg = &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	}
	return genai.NewClient(ctx, cfg)
}

// GeminiClient serves every tier from one genai client, one model per tier.
type GeminiClient struct {
	client *genai.Client
	models map[entity.ModelTier]string
}

func NewGeminiClientFromClient(c *genai.Client, tiers map[entity.ModelTier]entity.TierSpec) *GeminiClient {
	models := make(map[entity.ModelTier]string, len(tiers))
	for tier, spec := range tiers {
		models[tier] = spec.Model
	}
	return &GeminiClient{
		client: c,
		models: models,
	}
}

func (g *GeminiClient) CallModel(ctx context.Context, tier entity.ModelTier, prompt string) (*entity.ModelReply, error) {
	model, ok := g.models[tier]
	if !ok {
		return nil, fmt.Errorf("no model configured for tier %s", tier)
	}

	start := time.Now()
	result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return nil, err
	}
	content := result.Text()
	if content == "" {
		return nil, errors.New("empty model response")
	}

	reply := &entity.ModelReply{
		Tier:            tier,
		Model:           model,
		Content:         content,
		ModelConfidence: SelfReportedConfidence(content),
		LatencyMS:       time.Since(start).Milliseconds(),
	}
	if result.UsageMetadata != nil {
		reply.TokenCount = int(result.UsageMetadata.TotalTokenCount)
	}
	return reply, nil
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// SelfReportedConfidence reads the "confidence" field the model was asked to
// fill in, clamped to [0, 1]. Unreadable output counts as zero confidence.
func SelfReportedConfidence(content string) float64 {
	var out struct {
		Confidence *float64 `json:"confidence"`
	}
	raw := jsonObject.FindString(content)
	if raw == "" || json.Unmarshal([]byte(raw), &out) != nil || out.Confidence == nil {
		return 0
	}
	switch c := *out.Confidence; {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
