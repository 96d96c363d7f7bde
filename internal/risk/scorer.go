package risk

import (
	"context"
	"errors"
	"fmt"
)

// ScoreRequest is sent to the external scoring service.
type ScoreRequest struct {
	ClauseID       string `json:"clauseId"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	ContextVersion string `json:"contextVersion"`
}

// ScoreResponse is the scoring service's verdict.
type ScoreResponse struct {
	RiskLevel  string   `json:"riskLevel"`
	Tags       []string `json:"tags"`
	Confidence float64  `json:"confidence"`
	LatencyMs  int64    `json:"latencyMs"`
}

// Scorer is the port to the external scoring service. Implementations must
// honor ctx cancellation.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (*ScoreResponse, error)
}

// ErrorCategory is the normalized failure taxonomy for scorer calls.
type ErrorCategory string

const (
	// ErrorTimeout indicates the scorer did not answer within the call timeout
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates a malformed or out-of-contract response
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorOutage indicates the scorer is unreachable or failing
	ErrorOutage ErrorCategory = "outage"

	// ErrorRateLimited indicates the scorer or the local throttle refused the call
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorCircuitOpen indicates the call was skipped while the breaker is open
	ErrorCircuitOpen ErrorCategory = "circuit_open"

	// ErrorInternal indicates an unexpected failure
	ErrorInternal ErrorCategory = "internal"
)

// ScorerError wraps scorer failures with normalized categorization.
type ScorerError struct {
	Category   ErrorCategory
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ScorerError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("scorer [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("scorer [%s]: %s", e.Category, e.Message)
}

func (e *ScorerError) Unwrap() error {
	return e.Underlying
}

// NewScorerError creates a normalized scorer error.
func NewScorerError(category ErrorCategory, message string, underlying error) *ScorerError {
	retryable := category == ErrorTimeout ||
		category == ErrorOutage ||
		category == ErrorRateLimited

	return &ScorerError{
		Category:   category,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// CategoryOf extracts the error category, treating unknown errors as internal.
func CategoryOf(err error) ErrorCategory {
	var se *ScorerError
	if errors.As(err, &se) {
		return se.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorInternal
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var se *ScorerError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
