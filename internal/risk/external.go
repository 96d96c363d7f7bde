package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"regassist/internal/document"
	"regassist/internal/platform/metrics"
	"regassist/pkg/platform/audit"
	"regassist/pkg/platform/circuit"
	strutil "regassist/pkg/platform/strings"
)

const (
	// DefaultTimeout bounds each external scorer call.
	DefaultTimeout = 5 * time.Second

	defaultTrialInterval = 10 * time.Second
)

// Recorder appends audit entries. *audit.Log satisfies it.
type Recorder interface {
	Append(ctx context.Context, e audit.Entry) (audit.Item, error)
}

// External classifies through a Scorer and degrades to RuleBased on any
// scorer failure. A failure never fails the classification; it is recorded
// as a classification_fallback audit entry instead. Only cancellation of the
// caller's context, or a failure to record the fallback, is returned.
type External struct {
	scorer   Scorer
	fallback *RuleBased
	recorder Recorder
	breaker  *circuit.Breaker
	timeout  time.Duration
	trial    time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu        sync.Mutex
	lastTrial time.Time
}

// ExternalOption configures External.
type ExternalOption func(*External)

// WithTimeout sets the per-call scorer timeout.
func WithTimeout(d time.Duration) ExternalOption {
	return func(c *External) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRecorder sets where fallback audit entries go.
func WithRecorder(r Recorder) ExternalOption {
	return func(c *External) {
		c.recorder = r
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) ExternalOption {
	return func(c *External) {
		c.breaker = b
	}
}

// WithTrialInterval sets how often a call is let through while the circuit is open.
func WithTrialInterval(d time.Duration) ExternalOption {
	return func(c *External) {
		c.trial = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExternalOption {
	return func(c *External) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) ExternalOption {
	return func(c *External) {
		c.metrics = m
	}
}

// NewExternal creates a classifier over scorer with fallback as the degraded path.
func NewExternal(scorer Scorer, fallback *RuleBased, opts ...ExternalOption) *External {
	c := &External{
		scorer:   scorer,
		fallback: fallback,
		breaker:  circuit.New("risk-scorer"),
		timeout:  DefaultTimeout,
		trial:    defaultTrialInterval,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *External) Classify(ctx context.Context, clause document.Clause) (Assessment, error) {
	if err := ctx.Err(); err != nil {
		return Assessment{}, err
	}
	start := c.now()

	if c.breaker.IsOpen() && !c.takeTrial(start) {
		return c.degrade(ctx, clause, NewScorerError(ErrorCircuitOpen, "scorer circuit open", nil), start)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	resp, err := c.scorer.Score(callCtx, ScoreRequest{
		ClauseID:       clause.ID,
		Title:          clause.Title,
		Content:        clause.Content,
		ContextVersion: c.fallback.Version(),
	})
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()
	c.metrics.ObserveScorerLatency(c.now().Sub(start))

	if ctxErr := ctx.Err(); ctxErr != nil {
		// the caller gave up; that says nothing about the scorer
		return Assessment{}, ctxErr
	}

	var assessment Assessment
	if err == nil {
		assessment, err = fromResponse(resp)
	}
	if err != nil {
		if timedOut {
			err = NewScorerError(ErrorTimeout, "scorer exceeded "+c.timeout.String(), err)
		}
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "scorer circuit opened", "breaker", c.breaker.Name())
		}
		return c.degrade(ctx, clause, err, start)
	}

	usePrimary, change := c.breaker.RecordSuccess()
	if change.Closed {
		c.logger.InfoContext(ctx, "scorer circuit closed", "breaker", c.breaker.Name())
	}
	if !usePrimary {
		return c.degrade(ctx, clause, NewScorerError(ErrorCircuitOpen, "scorer recovering", nil), start)
	}
	assessment.Latency = c.now().Sub(start)
	c.metrics.IncrementClassification(string(SourceExternal), string(assessment.Level))
	return assessment, nil
}

// takeTrial lets one call through per trial interval while the circuit is open.
func (c *External) takeTrial(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastTrial) < c.trial {
		return false
	}
	c.lastTrial = now
	return true
}

func (c *External) degrade(ctx context.Context, clause document.Clause, cause error, start time.Time) (Assessment, error) {
	assessment := c.fallback.Assess(clause)
	assessment.Source = SourceFallback
	assessment.Latency = c.now().Sub(start)
	category := CategoryOf(cause)

	c.logger.WarnContext(ctx, "scorer failed, using rule-based classification",
		"clause_id", clause.ID,
		"version", clause.Version,
		"category", category,
		"error", cause,
	)
	c.metrics.IncrementClassification(string(SourceFallback), string(assessment.Level))

	if c.recorder != nil {
		_, err := c.recorder.Append(ctx, audit.EntryFrom(ctx, audit.ActionClassificationFallback, clause.ID, map[string]string{
			"version":    clause.Version,
			"category":   string(category),
			"retryable":  strconv.FormatBool(IsRetryable(cause)),
			"risk_level": string(assessment.Level),
			"error":      cause.Error(),
		}))
		if err != nil {
			return Assessment{}, err
		}
	}
	return assessment, nil
}

func fromResponse(resp *ScoreResponse) (Assessment, error) {
	if resp == nil {
		return Assessment{}, NewScorerError(ErrorBadData, "empty response", nil)
	}
	level, ok := document.ParseRiskLevel(resp.RiskLevel)
	if !ok {
		return Assessment{}, NewScorerError(ErrorBadData, "unknown risk level "+strconv.Quote(resp.RiskLevel), nil)
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		return Assessment{}, NewScorerError(ErrorBadData, "confidence out of range", nil)
	}
	return Assessment{
		Level:      level,
		Tags:       strutil.SortedSet(resp.Tags),
		Source:     SourceExternal,
		Confidence: resp.Confidence,
	}, nil
}
