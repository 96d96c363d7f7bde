package httptransport

import (
	"time"

	"regassist/internal/checklist"
	"regassist/internal/pipeline"
	"regassist/pkg/platform/audit"
)

// VersionResponse is returned by segmentation and classification. Its shape
// matches VersionPayload so clients can send it back unchanged.
type VersionResponse = VersionPayload

// FromVersion converts a pipeline version to its wire form.
func FromVersion(v *pipeline.Version) *VersionResponse {
	resp := &VersionResponse{
		DocumentID: v.Metadata.DocumentID.String(),
		Title:      v.Metadata.Title,
		Version:    v.Label(),
		Clauses:    make([]ClausePayload, 0, len(v.Clauses)),
	}
	for _, c := range v.Clauses {
		resp.Clauses = append(resp.Clauses, ClausePayload{
			ID:        c.ID,
			Title:     c.Title,
			Content:   c.Content,
			Page:      c.Page,
			Ordinal:   c.Ordinal,
			RiskLevel: string(c.RiskLevel),
			Tags:      c.Tags,
		})
	}
	return resp
}

// ChecklistResponse is the HTTP response for POST /v1/checklist.
type ChecklistResponse struct {
	Version   string           `json:"version"`
	Items     []checklist.Item `json:"items"`
	Mandatory int              `json:"mandatory"`
}

// FromItems converts generated items to the checklist response.
func FromItems(version string, items []checklist.Item) *ChecklistResponse {
	resp := &ChecklistResponse{Version: version, Items: items}
	if resp.Items == nil {
		resp.Items = []checklist.Item{}
	}
	for _, it := range items {
		if it.IsMandatory {
			resp.Mandatory++
		}
	}
	return resp
}

// AuditItemResponse is the wire form of an audit item.
type AuditItemResponse struct {
	ID         uint64            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Action     string            `json:"action"`
	Actor      string            `json:"actor"`
	Role       string            `json:"role"`
	ResourceID string            `json:"resourceId"`
	Details    map[string]string `json:"details,omitempty"`
	RequestID  string            `json:"requestId,omitempty"`
	Client     string            `json:"client,omitempty"`
	PrevHash   string            `json:"prevHash,omitempty"`
	Hash       string            `json:"hash"`
}

// AuditResponse is the HTTP response for GET /v1/audit. Items are newest first.
type AuditResponse struct {
	Items []AuditItemResponse `json:"items"`
	Count int                 `json:"count"`
}

// FromAuditItem converts an audit item to its wire form.
func FromAuditItem(it audit.Item) AuditItemResponse {
	return AuditItemResponse{
		ID:         it.ID,
		Timestamp:  it.Timestamp,
		Action:     string(it.Action),
		Actor:      it.Actor,
		Role:       string(it.Role),
		ResourceID: it.ResourceID,
		Details:    it.Details,
		RequestID:  it.RequestID,
		Client:     it.Client,
		PrevHash:   it.PrevHash,
		Hash:       it.Hash,
	}
}

// HealthResponse is the HTTP response for GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
