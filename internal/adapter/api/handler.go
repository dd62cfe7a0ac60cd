package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"racha-core/internal/domain/entity"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Interpreter is the use case behind the HTTP surface.
type Interpreter interface {
	Interpret(ctx context.Context, req entity.InterpretRequest) (*entity.InterpretResult, error)
	Budget(ctx context.Context) (entity.BudgetLedger, error)
}

type InterpretHandler struct {
	interpreter Interpreter
	timeout     time.Duration
	log         *zap.Logger
}

func NewInterpretHandler(interpreter Interpreter, timeout time.Duration, log *zap.Logger) *InterpretHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &InterpretHandler{interpreter: interpreter, timeout: timeout, log: log.Named("api")}
}

func (h *InterpretHandler) HandleInterpret(c *fiber.Ctx) error {
	var req entity.InterpretRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.RequestID == "" {
		req.RequestID = c.Get("X-Request-ID")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	// Text problems never fail the request; only oversized or malformed input does.
	res, err := h.interpreter.Interpret(ctx, req)
	if err != nil {
		if errors.Is(err, entity.ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Error("interpret failed", zap.String("request_id", req.RequestID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	c.Set("X-Request-ID", res.RequestID)
	c.Set("X-Racha-Cache-Hit", "false")
	if res.Cached {
		c.Set("X-Racha-Cache-Hit", "true")
	}
	return c.Status(fiber.StatusOK).JSON(newInterpretResponse(res))
}

func (h *InterpretHandler) HandleBudget(c *fiber.Ctx) error {
	ledger, err := h.interpreter.Budget(c.UserContext())
	if err != nil {
		h.log.Error("budget snapshot failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "budget ledger unavailable"})
	}
	return c.Status(fiber.StatusOK).JSON(budgetResponse{
		Date:         ledger.Date,
		SpentBRL:     money(ledger.SpentBRL),
		CapBRL:       money(ledger.CapBRL),
		RemainingBRL: money(ledger.Remaining()),
	})
}

// Amounts go out as JSON numbers with exactly two fractional digits.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type shareResponse struct {
	Participant string      `json:"participant"`
	Amount      json.Number `json:"amount"`
}

type splitResponse struct {
	Total             json.Number     `json:"total"`
	Method            entity.Method   `json:"method"`
	Label             string          `json:"label"`
	Shares            []shareResponse `json:"shares"`
	RoundingRemainder json.Number     `json:"rounding_remainder"`
	Adjustments       []shareResponse `json:"adjustments,omitempty"`
}

type interpretationResponse struct {
	Scenario        entity.Scenario `json:"scenario,omitempty"`
	Method          entity.Method   `json:"method,omitempty"`
	Amount          *json.Number    `json:"amount"`
	Participants    []string        `json:"participants"`
	Confidence      float64         `json:"confidence"`
	MatchedKeywords []string        `json:"matched_keywords"`
}

type interpretResponse struct {
	RequestID      string                 `json:"request_id"`
	Interpretation interpretationResponse `json:"interpretation"`
	Split          *splitResponse         `json:"split,omitempty"`
	SplitError     string                 `json:"split_error,omitempty"`
	Tier           entity.ModelTier       `json:"tier,omitempty"`
	Path           entity.Path            `json:"path"`
	Cached         bool                   `json:"cached"`
	BudgetExceeded bool                   `json:"budget_exceeded"`
	Degraded       bool                   `json:"degraded"`
	AICalls        int                    `json:"ai_calls"`
}

type budgetResponse struct {
	Date         string      `json:"date"`
	SpentBRL     json.Number `json:"spent_brl"`
	CapBRL       json.Number `json:"cap_brl"`
	RemainingBRL json.Number `json:"remaining_brl"`
}

func newInterpretResponse(res *entity.InterpretResult) interpretResponse {
	in := res.Interpretation
	out := interpretResponse{
		RequestID: res.RequestID,
		Interpretation: interpretationResponse{
			Scenario:        in.Scenario,
			Method:          in.Method,
			Participants:    nonNil(in.Participants),
			Confidence:      in.Confidence,
			MatchedKeywords: nonNil(in.MatchedKeywords),
		},
		SplitError:     res.SplitError,
		Tier:           res.Tier,
		Path:           res.Path,
		Cached:         res.Cached,
		BudgetExceeded: res.BudgetExceeded,
		Degraded:       res.Degraded,
		AICalls:        res.AICalls,
	}
	if in.HasAmount() {
		amount := money(in.Amount)
		out.Interpretation.Amount = &amount
	}
	if s := res.Split; s != nil {
		out.Split = &splitResponse{
			Total:             money(s.Total),
			Method:            s.Method,
			Label:             s.Label,
			Shares:            shares(s.Shares),
			RoundingRemainder: money(s.RoundingRemainder),
			Adjustments:       shares(s.Adjustments),
		}
	}
	return out
}

func shares(in []entity.Share) []shareResponse {
	if len(in) == 0 {
		return nil
	}
	out := make([]shareResponse, len(in))
	for i, s := range in {
		out[i] = shareResponse{Participant: s.Participant, Amount: money(s.Amount)}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
