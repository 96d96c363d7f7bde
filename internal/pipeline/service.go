// Package pipeline orchestrates the compliance core: ingestion,
// classification, version comparison and checklist derivation. Every
// successful stage appends one audit entry, except that normalization and
// segmentation share a single document_segmented entry. A fatal failure
// appends a pipeline_failed entry and is returned as a *StageError.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"regassist/internal/checklist"
	"regassist/internal/diff"
	"regassist/internal/document"
	"regassist/internal/platform/metrics"
	"regassist/internal/risk"
	id "regassist/pkg/domain"
	dErrors "regassist/pkg/domain-errors"
	"regassist/pkg/platform/audit"
)

// AuditRecorder appends audit entries. *audit.Log satisfies it.
type AuditRecorder interface {
	Append(ctx context.Context, e audit.Entry) (audit.Item, error)
}

// Version is one segmented version of a document. Callers own it; the
// service never keeps it between calls.
type Version struct {
	Metadata document.Metadata `json:"metadata"`
	Clauses  []document.Clause `json:"clauses"`
}

// Label returns the version label the clauses were segmented under.
func (v *Version) Label() string {
	return v.Metadata.VersionLabel
}

// Service runs pipeline stages. It is safe for concurrent use.
type Service struct {
	audit       AuditRecorder
	classifier  risk.Classifier
	differ      *diff.Engine
	generator   *checklist.Generator
	maxInFlight int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Service)

func WithClassifier(c risk.Classifier) Option {
	return func(s *Service) {
		s.classifier = c
	}
}

func WithDiffEngine(e *diff.Engine) Option {
	return func(s *Service) {
		s.differ = e
	}
}

func WithChecklistGenerator(g *checklist.Generator) Option {
	return func(s *Service) {
		s.generator = g
	}
}

// WithMaxInFlight bounds concurrent clause classifications per document.
func WithMaxInFlight(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxInFlight = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service. Collaborators not supplied default to the
// rule-based classifier, a default diff engine and the default ruleset.
func New(recorder AuditRecorder, opts ...Option) (*Service, error) {
	if recorder == nil {
		return nil, errors.New("audit recorder is required")
	}
	s := &Service{
		audit:       recorder,
		maxInFlight: risk.DefaultMaxInFlight,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:      otel.Tracer("regassist/pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.classifier == nil {
		s.classifier = risk.NewRuleBased(nil)
	}
	if s.differ == nil {
		s.differ = diff.New(diff.WithMetrics(s.metrics))
	}
	if s.generator == nil {
		s.generator = checklist.New(nil, checklist.WithMetrics(s.metrics))
	}
	return s, nil
}

// Ingest normalizes and segments a raw document into a Version.
func (s *Service) Ingest(ctx context.Context, raw document.RawDocument) (*Version, error) {
	meta := raw.Metadata
	if meta.VersionLabel == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "version label is required")
	}
	if meta.DocumentID.IsNil() {
		meta.DocumentID = id.NewDocumentID()
	}

	var lines []document.Line
	err := s.stage(ctx, StageNormalize, meta.DocumentID, meta.VersionLabel, func(context.Context) error {
		var err error
		lines, err = document.Normalize(raw.Content, raw.Encoding)
		return err
	})
	if err != nil {
		return nil, err
	}

	var clauses []document.Clause
	err = s.stage(ctx, StageSegment, meta.DocumentID, meta.VersionLabel, func(ctx context.Context) error {
		var err error
		clauses, err = document.Segment(meta.VersionLabel, lines)
		if err != nil {
			return err
		}
		s.metrics.AddClausesSegmented(len(clauses))
		return s.record(ctx, audit.ActionDocumentSegmented, meta.DocumentID.String(), map[string]string{
			"version":  meta.VersionLabel,
			"title":    meta.Title,
			"lines":    strconv.Itoa(len(lines)),
			"clauses":  strconv.Itoa(len(clauses)),
			"encoding": raw.Encoding,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "document segmented",
		"document_id", meta.DocumentID,
		"version", meta.VersionLabel,
		"clauses", len(clauses),
	)
	return &Version{Metadata: meta, Clauses: clauses}, nil
}

// Classify returns a copy of v whose clauses carry risk levels and tags.
// Scorer failures degrade per clause and never fail the stage.
func (s *Service) Classify(ctx context.Context, v *Version) (*Version, error) {
	if err := requireVersion(v, "version"); err != nil {
		return nil, err
	}
	var out *Version
	err := s.stage(ctx, StageClassify, v.Metadata.DocumentID, v.Label(), func(ctx context.Context) error {
		annotated, assessments, err := risk.ClassifyAll(ctx, s.classifier, v.Clauses, s.maxInFlight)
		if err != nil {
			return err
		}
		out = &Version{Metadata: v.Metadata, Clauses: annotated}

		details := map[string]string{"version": v.Label()}
		counts := map[string]int{}
		for _, a := range assessments {
			counts[string(a.Level)]++
			counts[string(a.Source)]++
		}
		for k, n := range counts {
			details[k] = strconv.Itoa(n)
		}
		return s.record(ctx, audit.ActionClausesClassified, v.Metadata.DocumentID.String(), details)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Process ingests raw and classifies the result.
func (s *Service) Process(ctx context.Context, raw document.RawDocument) (*Version, error) {
	v, err := s.Ingest(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.Classify(ctx, v)
}

// Compare diffs source against target. Both must be versions of the same document.
func (s *Service) Compare(ctx context.Context, source, target *Version) (*diff.Result, error) {
	if err := requireVersion(source, "source"); err != nil {
		return nil, err
	}
	if err := requireVersion(target, "target"); err != nil {
		return nil, err
	}
	if source.Metadata.DocumentID != target.Metadata.DocumentID {
		return nil, dErrors.New(dErrors.CodeValidation, "versions belong to different documents")
	}
	var res *diff.Result
	err := s.stage(ctx, StageDiff, target.Metadata.DocumentID, target.Label(), func(ctx context.Context) error {
		var err error
		res, err = s.differ.Compare(source.Label(), source.Clauses, target.Label(), target.Clauses)
		if err != nil {
			return err
		}
		return s.record(ctx, audit.ActionVersionsCompared, target.Metadata.DocumentID.String(), map[string]string{
			"source_version": source.Label(),
			"target_version": target.Label(),
			"added":          strconv.Itoa(res.Stats.Added),
			"removed":        strconv.Itoa(res.Stats.Removed),
			"modified":       strconv.Itoa(res.Stats.Modified),
			"unchanged":      strconv.Itoa(res.Stats.Unchanged),
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Checklist derives items from every clause of v.
func (s *Service) Checklist(ctx context.Context, v *Version) ([]checklist.Item, error) {
	if err := requireVersion(v, "version"); err != nil {
		return nil, err
	}
	return s.checklist(ctx, v, "all", func() ([]checklist.Item, error) {
		return s.generator.Generate(v.Clauses), nil
	})
}

// ChecklistFromDiff derives items from the clauses res reports as added or
// modified in target.
func (s *Service) ChecklistFromDiff(ctx context.Context, res *diff.Result, target *Version) ([]checklist.Item, error) {
	if err := requireVersion(target, "target"); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "diff result is required")
	}
	if res.TargetVersion != target.Label() {
		return nil, dErrors.New(dErrors.CodeValidation, "diff target does not match version")
	}
	return s.checklist(ctx, target, "changes", func() ([]checklist.Item, error) {
		return s.generator.GenerateFromDiff(res, target.Clauses)
	})
}

func requireVersion(v *Version, name string) error {
	if v == nil {
		return dErrors.New(dErrors.CodeValidation, name+" is required")
	}
	return nil
}

func (s *Service) checklist(ctx context.Context, v *Version, scope string, generate func() ([]checklist.Item, error)) ([]checklist.Item, error) {
	var items []checklist.Item
	err := s.stage(ctx, StageChecklist, v.Metadata.DocumentID, v.Label(), func(ctx context.Context) error {
		var err error
		items, err = generate()
		if err != nil {
			return err
		}
		mandatory := 0
		for _, it := range items {
			if it.IsMandatory {
				mandatory++
			}
		}
		return s.record(ctx, audit.ActionChecklistGenerated, v.Metadata.DocumentID.String(), map[string]string{
			"version":         v.Label(),
			"scope":           scope,
			"ruleset_version": s.generator.RulesetVersion(),
			"items":           strconv.Itoa(len(items)),
			"mandatory":       strconv.Itoa(mandatory),
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Export flattens items into the export table and records the export
// against resourceID.
func (s *Service) Export(ctx context.Context, resourceID string, items []checklist.Item) (checklist.Table, error) {
	table := checklist.Export(items)
	err := s.record(ctx, audit.ActionChecklistExported, resourceID, map[string]string{
		"rows": strconv.Itoa(len(table.Rows)),
	})
	if err != nil {
		return checklist.Table{}, fmt.Errorf("record checklist export: %w", err)
	}
	return table, nil
}

// stage runs fn inside a span, observes its duration and turns a failure
// into a *StageError after recording it.
func (s *Service) stage(ctx context.Context, stage Stage, docID id.DocumentID, version string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "pipeline."+string(stage), trace.WithAttributes(
		attribute.String("document.id", docID.String()),
		attribute.String("document.version", version),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if err == nil {
		s.metrics.ObserveStage(string(stage), "ok", time.Since(start))
		return nil
	}
	s.metrics.ObserveStage(string(stage), "error", time.Since(start))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	s.logger.ErrorContext(ctx, "pipeline stage failed",
		"document_id", docID,
		"version", version,
		"stage", stage,
		"error", err,
	)
	stageErr := &StageError{DocumentID: docID, Version: version, Stage: stage, Err: err}
	if ctx.Err() != nil {
		return stageErr
	}
	if recErr := s.record(ctx, audit.ActionPipelineFailed, docID.String(), map[string]string{
		"version": version,
		"stage":   string(stage),
		"code":    string(dErrors.CodeOf(err)),
		"error":   err.Error(),
	}); recErr != nil {
		stageErr.Err = errors.Join(err, recErr)
	}
	return stageErr
}

func (s *Service) record(ctx context.Context, action audit.Action, resourceID string, details map[string]string) error {
	_, err := s.audit.Append(ctx, audit.EntryFrom(ctx, action, resourceID, details))
	return err
}
