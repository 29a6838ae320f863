package domain

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyAnswered  = errors.New("already answered")
	ErrAIFailed         = errors.New("ai generation failed")
	ErrNoJobAvailable   = errors.New("no job available")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrPrintQueueFailed = errors.New("print queue failed")
)

// Error codes returned to API callers.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyUsed      = "ALREADY_USED"
	CodeAIFailed         = "AI_FAILED"
	CodeInvalidStatus    = "INVALID_STATUS"
	CodePrintQueueFailed = "PRINT_QUEUE_FAILED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL"
)

// Code maps err to its stable machine-readable code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyAnswered):
		return CodeAlreadyUsed
	case errors.Is(err, ErrAIFailed):
		return CodeAIFailed
	case errors.Is(err, ErrInvalidStatus):
		return CodeInvalidStatus
	case errors.Is(err, ErrPrintQueueFailed):
		return CodePrintQueueFailed
	default:
		return CodeInternal
	}
}
