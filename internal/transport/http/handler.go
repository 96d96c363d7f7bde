// Package httptransport exposes the compliance pipeline and the audit trail
// over HTTP. Handlers are thin: they decode, call the pipeline and encode.
package httptransport

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"regassist/internal/checklist"
	"regassist/internal/diff"
	"regassist/internal/document"
	"regassist/internal/pipeline"
	dErrors "regassist/pkg/domain-errors"
	"regassist/pkg/platform/audit"
	"regassist/pkg/platform/httputil"
	authmw "regassist/pkg/platform/middleware/auth"
	"regassist/pkg/platform/middleware/metadata"
	"regassist/pkg/platform/middleware/ratelimit"
	"regassist/pkg/platform/middleware/request"
	"regassist/pkg/platform/middleware/requesttime"
	"regassist/pkg/requestcontext"
)

const requestTimeout = 30 * time.Second

// Pipeline defines the pipeline operations served over HTTP.
type Pipeline interface {
	Ingest(ctx context.Context, raw document.RawDocument) (*pipeline.Version, error)
	Process(ctx context.Context, raw document.RawDocument) (*pipeline.Version, error)
	Classify(ctx context.Context, v *pipeline.Version) (*pipeline.Version, error)
	Compare(ctx context.Context, source, target *pipeline.Version) (*diff.Result, error)
	Checklist(ctx context.Context, v *pipeline.Version) ([]checklist.Item, error)
	ChecklistFromDiff(ctx context.Context, res *diff.Result, target *pipeline.Version) ([]checklist.Item, error)
	Export(ctx context.Context, resourceID string, items []checklist.Item) (checklist.Table, error)
}

// AuditReader queries the audit trail. *audit.Log satisfies it.
type AuditReader interface {
	Query(ctx context.Context, f audit.Filter) iter.Seq2[audit.Item, error]
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Handler wires pipeline and audit endpoints.
type Handler struct {
	pipeline     Pipeline
	audit        AuditReader
	logger       *slog.Logger
	jwtValidator authmw.JWTValidator
	limiter      *ratelimit.Middleware
	checks       map[string]HealthCheck
	metrics      http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithJWTValidator requires a bearer token on every /v1 route.
func WithJWTValidator(v authmw.JWTValidator) Option {
	return func(h *Handler) {
		h.jwtValidator = v
	}
}

// WithRateLimiter throttles /v1 callers.
func WithRateLimiter(l *ratelimit.Middleware) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// WithHealthCheck adds a named dependency check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		h.checks[name] = check
	}
}

// WithMetricsHandler serves handler at /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(h *Handler) {
		h.metrics = handler
	}
}

// New constructs a handler with its dependencies.
func New(p Pipeline, reader AuditReader, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		pipeline: p,
		audit:    reader,
		logger:   logger,
		checks:   map[string]HealthCheck{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on r.
func (h *Handler) Register(r chi.Router) {
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(h.logger))

	r.Get("/healthz", h.HandleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(chimw.Timeout(requestTimeout))
		if h.jwtValidator != nil {
			v1.Use(authmw.RequireAuth(h.jwtValidator, nil, h.logger))
		}
		if h.limiter != nil {
			v1.Use(h.limiter.Handler)
		}
		v1.Post("/documents/segment", h.HandleSegment)
		v1.Post("/clauses/classify", h.HandleClassify)
		v1.Post("/diff", h.HandleDiff)
		v1.Post("/checklist", h.HandleChecklist)
		v1.Post("/checklist/export", h.HandleExport)
		v1.Get("/audit", h.HandleAudit)
	})
}

// NewRouter returns a chi router with h registered.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// HandleSegment handles POST /v1/documents/segment requests.
func (h *Handler) HandleSegment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[SegmentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	ingest := h.pipeline.Ingest
	if req.Classify {
		ingest = h.pipeline.Process
	}
	v, err := ingest(ctx, req.RawDocument())
	if err != nil {
		h.fail(ctx, w, "document segmentation failed", err, "version", req.Version)
		return
	}

	h.logger.InfoContext(ctx, "document segmented",
		"request_id", requestID,
		"document_id", v.Metadata.DocumentID,
		"version", v.Label(),
		"clauses", len(v.Clauses),
		"classified", req.Classify,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromVersion(v))
}

// HandleClassify handles POST /v1/clauses/classify requests.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ClassifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	v, err := h.pipeline.Classify(ctx, req.ParsedVersion())
	if err != nil {
		h.fail(ctx, w, "classification failed", err, "version", req.Version)
		return
	}

	h.logger.InfoContext(ctx, "clauses classified",
		"request_id", requestID,
		"document_id", v.Metadata.DocumentID,
		"version", v.Label(),
		"clauses", len(v.Clauses),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromVersion(v))
}

// HandleDiff handles POST /v1/diff requests.
func (h *Handler) HandleDiff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[DiffRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	source, target := req.Versions()
	res, err := h.pipeline.Compare(ctx, source, target)
	if err != nil {
		h.fail(ctx, w, "version comparison failed", err,
			"source_version", source.Label(),
			"target_version", target.Label(),
		)
		return
	}

	h.logger.InfoContext(ctx, "versions compared",
		"request_id", requestID,
		"source_version", res.SourceVersion,
		"target_version", res.TargetVersion,
		"segments", len(res.Segments),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleChecklist handles POST /v1/checklist requests.
func (h *Handler) HandleChecklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[ChecklistRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	v := req.ParsedVersion()
	var (
		items []checklist.Item
		err   error
	)
	if req.Diff != nil {
		items, err = h.pipeline.ChecklistFromDiff(ctx, req.Diff, v)
	} else {
		items, err = h.pipeline.Checklist(ctx, v)
	}
	if err != nil {
		h.fail(ctx, w, "checklist generation failed", err, "version", v.Label())
		return
	}

	h.logger.InfoContext(ctx, "checklist generated",
		"request_id", requestID,
		"version", v.Label(),
		"items", len(items),
		"from_diff", req.Diff != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromItems(v.Label(), items))
}

// HandleExport handles POST /v1/checklist/export requests.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ExportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	table, err := h.pipeline.Export(ctx, req.ResourceID, req.Items)
	if err != nil {
		h.fail(ctx, w, "checklist export failed", err, "resource_id", req.ResourceID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, table)
}

// HandleAudit handles GET /v1/audit requests.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	f, err := parseAuditFilter(r.URL.Query())
	if err != nil {
		h.logger.WarnContext(ctx, "invalid audit query",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := AuditResponse{Items: []AuditItemResponse{}}
	for it, err := range h.audit.Query(ctx, f) {
		if err != nil {
			h.fail(ctx, w, "audit query failed", err)
			return
		}
		resp.Items = append(resp.Items, FromAuditItem(it))
	}
	resp.Count = len(resp.Items)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleHealth handles GET /healthz requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok"}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

// fail logs err and writes the coded error response. Stage errors keep their
// underlying code.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	args := append([]any{
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	}, attrs...)
	h.logger.Log(ctx, level, msg, args...)
	httputil.WriteError(w, err)
}
