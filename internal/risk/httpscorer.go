package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const maxScoreResponseBytes = 1 << 20

// HTTPScorer calls a scoring service over JSON/HTTP: POST the ScoreRequest,
// expect a 2xx ScoreResponse. Anything else is a ScorerError.
type HTTPScorer struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// HTTPScorerOption configures HTTPScorer.
type HTTPScorerOption func(*HTTPScorer)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) HTTPScorerOption {
	return func(s *HTTPScorer) {
		s.client = client
	}
}

// WithRateLimit throttles outgoing calls to rps with the given burst.
// A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) HTTPScorerOption {
	return func(s *HTTPScorer) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// NewHTTPScorer creates a scorer for endpoint. Per-call deadlines come from
// the caller's context; the client timeout is only a backstop.
func NewHTTPScorer(endpoint string, opts ...HTTPScorerOption) *HTTPScorer {
	s := &HTTPScorer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPScorer) Score(ctx context.Context, req ScoreRequest) (*ScoreResponse, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, NewScorerError(ErrorRateLimited, "local throttle", err)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, NewScorerError(ErrorInternal, "encode request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewScorerError(ErrorInternal, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewScorerError(ErrorTimeout, "request timed out", err)
		}
		return nil, NewScorerError(ErrorOutage, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxScoreResponseBytes))
		return nil, statusError(resp.StatusCode)
	}

	var out ScoreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxScoreResponseBytes)).Decode(&out); err != nil {
		return nil, NewScorerError(ErrorBadData, "decode response", err)
	}
	return &out, nil
}

func statusError(code int) *ScorerError {
	msg := fmt.Sprintf("unexpected status %d", code)
	switch {
	case code == http.StatusTooManyRequests:
		return NewScorerError(ErrorRateLimited, msg, nil)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return NewScorerError(ErrorTimeout, msg, nil)
	case code >= 500:
		return NewScorerError(ErrorOutage, msg, nil)
	default:
		return NewScorerError(ErrorBadData, msg, nil)
	}
}
