package httptransport

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"regassist/internal/checklist"
	"regassist/internal/diff"
	"regassist/internal/document"
	"regassist/internal/pipeline"
	id "regassist/pkg/domain"
	dErrors "regassist/pkg/domain-errors"
	"regassist/pkg/platform/audit"
)

const (
	maxClausesPerRequest = 5000
	maxItemsPerRequest   = 10000
	maxLabelLen          = 128
)

// SegmentRequest is the HTTP request body for POST /v1/documents/segment.
// Exactly one of Content and ContentBase64 must be set; ContentBase64 carries
// bytes in a non-UTF-8 declared encoding.
type SegmentRequest struct {
	DocumentID    string `json:"documentId"`
	Title         string `json:"title"`
	Regulator     string `json:"regulator"`
	Jurisdiction  string `json:"jurisdiction"`
	Sector        string `json:"sector"`
	Version       string `json:"version"`
	Date          string `json:"date"`
	Encoding      string `json:"encoding"`
	Content       string `json:"content"`
	ContentBase64 string `json:"contentBase64"`
	// Classify runs the risk classifier on the segmented clauses.
	Classify bool `json:"classify"`

	raw document.RawDocument
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SegmentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Version = strings.TrimSpace(r.Version)
	if r.Version == "" {
		return dErrors.New(dErrors.CodeValidation, "version is required")
	}
	if len(r.Version) > maxLabelLen {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("version must be at most %d characters", maxLabelLen))
	}

	meta := document.Metadata{
		Title:        strings.TrimSpace(r.Title),
		Regulator:    strings.TrimSpace(r.Regulator),
		Jurisdiction: strings.TrimSpace(r.Jurisdiction),
		Sector:       strings.TrimSpace(r.Sector),
		VersionLabel: r.Version,
	}
	if r.DocumentID != "" {
		docID, err := id.ParseDocumentID(r.DocumentID)
		if err != nil {
			return err
		}
		meta.DocumentID = docID
	}
	if r.Date != "" {
		date, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "date must be formatted as YYYY-MM-DD")
		}
		meta.Date = date
	}

	var content []byte
	switch {
	case r.Content != "" && r.ContentBase64 != "":
		return dErrors.New(dErrors.CodeValidation, "content and contentBase64 are mutually exclusive")
	case r.ContentBase64 != "":
		decoded, err := base64.StdEncoding.DecodeString(r.ContentBase64)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "contentBase64 is not valid base64")
		}
		content = decoded
	default:
		content = []byte(r.Content)
	}

	r.raw = document.RawDocument{
		Content:  content,
		Encoding: strings.TrimSpace(r.Encoding),
		Metadata: meta,
	}
	return nil
}

// RawDocument returns the validated ingestion input.
func (r *SegmentRequest) RawDocument() document.RawDocument {
	return r.raw
}

// VersionPayload carries a segmented version between calls. The service keeps
// no document state, so callers send back what segmentation returned.
type VersionPayload struct {
	DocumentID string          `json:"documentId"`
	Title      string          `json:"title"`
	Version    string          `json:"version"`
	Clauses    []ClausePayload `json:"clauses"`
}

// ClausePayload is the wire form of a clause.
type ClausePayload struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Page      int      `json:"page"`
	Ordinal   int      `json:"ordinal"`
	RiskLevel string   `json:"riskLevel,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

func (p *VersionPayload) parse(field string) (*pipeline.Version, error) {
	if p == nil {
		return nil, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	docID, err := id.ParseDocumentID(p.DocumentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, field+".documentId: invalid document id")
	}
	p.Version = strings.TrimSpace(p.Version)
	if p.Version == "" {
		return nil, dErrors.New(dErrors.CodeValidation, field+".version is required")
	}
	if len(p.Clauses) > maxClausesPerRequest {
		return nil, dErrors.New(dErrors.CodeResourceLimit, fmt.Sprintf("%s.clauses must hold at most %d clauses", field, maxClausesPerRequest))
	}

	clauses := make([]document.Clause, 0, len(p.Clauses))
	for i, c := range p.Clauses {
		if strings.TrimSpace(c.ID) == "" {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s.clauses[%d].id is required", field, i))
		}
		var level document.RiskLevel
		if c.RiskLevel != "" {
			parsed, ok := document.ParseRiskLevel(c.RiskLevel)
			if !ok {
				return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s.clauses[%d].riskLevel must be low, medium or high", field, i))
			}
			level = parsed
		}
		ordinal := c.Ordinal
		if ordinal == 0 {
			ordinal = i + 1
		}
		clauses = append(clauses, document.Clause{
			ID:        c.ID,
			Version:   p.Version,
			Title:     c.Title,
			Content:   c.Content,
			Page:      c.Page,
			Ordinal:   ordinal,
			RiskLevel: level,
			Tags:      c.Tags,
		})
	}

	return &pipeline.Version{
		Metadata: document.Metadata{DocumentID: docID, Title: p.Title, VersionLabel: p.Version},
		Clauses:  clauses,
	}, nil
}

// ClassifyRequest is the HTTP request body for POST /v1/clauses/classify.
type ClassifyRequest struct {
	VersionPayload

	parsed *pipeline.Version
}

// Validate validates and parses the request.
func (r *ClassifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	v, err := r.VersionPayload.parse("version")
	if err != nil {
		return err
	}
	r.parsed = v
	return nil
}

// ParsedVersion returns the validated version.
func (r *ClassifyRequest) ParsedVersion() *pipeline.Version {
	return r.parsed
}

// DiffRequest is the HTTP request body for POST /v1/diff.
type DiffRequest struct {
	Source *VersionPayload `json:"source"`
	Target *VersionPayload `json:"target"`

	source *pipeline.Version
	target *pipeline.Version
}

// Validate validates and parses the request.
func (r *DiffRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.source, err = r.Source.parse("source"); err != nil {
		return err
	}
	if r.target, err = r.Target.parse("target"); err != nil {
		return err
	}
	return nil
}

// Versions returns the validated source and target.
func (r *DiffRequest) Versions() (*pipeline.Version, *pipeline.Version) {
	return r.source, r.target
}

// ChecklistRequest is the HTTP request body for POST /v1/checklist.
// When Diff is set, only clauses it reports as added or modified contribute.
type ChecklistRequest struct {
	Version *VersionPayload `json:"version"`
	Diff    *diff.Result    `json:"diff,omitempty"`

	parsed *pipeline.Version
}

// Validate validates and parses the request.
func (r *ChecklistRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	v, err := r.Version.parse("version")
	if err != nil {
		return err
	}
	if r.Diff != nil && r.Diff.TargetVersion != v.Label() {
		return dErrors.New(dErrors.CodeValidation, "diff.targetVersion must match version.version")
	}
	r.parsed = v
	return nil
}

// ParsedVersion returns the validated version.
func (r *ChecklistRequest) ParsedVersion() *pipeline.Version {
	return r.parsed
}

// ExportRequest is the HTTP request body for POST /v1/checklist/export.
type ExportRequest struct {
	ResourceID string           `json:"resourceId"`
	Items      []checklist.Item `json:"items"`
}

// Validate validates the request.
func (r *ExportRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ResourceID = strings.TrimSpace(r.ResourceID)
	if r.ResourceID == "" {
		return dErrors.New(dErrors.CodeValidation, "resourceId is required")
	}
	if len(r.Items) > maxItemsPerRequest {
		return dErrors.New(dErrors.CodeResourceLimit, fmt.Sprintf("items must hold at most %d entries", maxItemsPerRequest))
	}
	for i, it := range r.Items {
		if strings.TrimSpace(it.Text) == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("items[%d].text is required", i))
		}
	}
	return nil
}

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// parseAuditFilter reads GET /v1/audit query parameters: actor, role,
// action (repeatable), resourceId, since and until (RFC 3339) and limit.
func parseAuditFilter(q url.Values) (audit.Filter, error) {
	f := audit.Filter{
		Actor:      strings.TrimSpace(q.Get("actor")),
		ResourceID: strings.TrimSpace(q.Get("resourceId")),
		Limit:      defaultAuditLimit,
	}
	if v := q.Get("role"); v != "" {
		role, err := id.ParseRole(v)
		if err != nil {
			return audit.Filter{}, dErrors.Wrap(err, dErrors.CodeValidation, "role must be admin, analyst, auditor or system")
		}
		f.Role = role
	}
	for _, a := range q["action"] {
		for part := range strings.SplitSeq(a, ",") {
			if part = strings.TrimSpace(part); part != "" {
				f.Actions = append(f.Actions, audit.Action(part))
			}
		}
	}
	var err error
	if f.Since, err = parseTime(q.Get("since"), "since"); err != nil {
		return audit.Filter{}, err
	}
	if f.Until, err = parseTime(q.Get("until"), "until"); err != nil {
		return audit.Filter{}, err
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && !f.Since.Before(f.Until) {
		return audit.Filter{}, dErrors.New(dErrors.CodeValidation, "since must be before until")
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return audit.Filter{}, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer")
		}
		f.Limit = min(n, maxAuditLimit)
	}
	return f, nil
}

func parseTime(v, field string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, field+" must be an RFC 3339 timestamp")
	}
	return t, nil
}
