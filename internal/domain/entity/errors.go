package entity

import "errors"

// Standard domain errors
var (
	ErrInput            = errors.New("invalid expense input")
	ErrInsufficientData = errors.New("insufficient data to split")
	ErrProvider         = errors.New("ai provider failed")
	ErrBudgetExceeded   = errors.New("daily ai budget exceeded")
	ErrInvalidRequest   = errors.New("invalid request parameters")
)

// SplitErrorCode maps a split failure to the code reported to callers.
func SplitErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrInput):
		return "invalid_input"
	default:
		return "split_failed"
	}
}
