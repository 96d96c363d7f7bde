package httptransport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"regassist/internal/checklist"
	"regassist/internal/diff"
	jwttoken "regassist/internal/jwt_token"
	"regassist/internal/pipeline"
	httptransport "regassist/internal/transport/http"
	"regassist/internal/transport/http/mocks"
	id "regassist/pkg/domain"
	"regassist/pkg/platform/audit"
	"regassist/pkg/platform/audit/store/memory"
	"regassist/pkg/platform/middleware/ratelimit"
	"regassist/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/pipeline_mock.go -package=mocks Pipeline

const draft = `Article 1
Subject matter
This Regulation lays down uniform requirements concerning the security of network and information systems.

Article 5
Governance and organisation
Financial entities shall have in place an internal governance framework for ICT risk.
`

const final = `Article 1
Subject matter
This Regulation lays down uniform requirements concerning the security of network and information systems.

Article 5
Governance and organisation
Financial entities shall have in place an internal governance and control framework that ensures an effective and prudent management of ICT risk.

Article 6
Register of information
Financial entities may publish an annual summary of their ICT arrangements.
`

type HandlerSuite struct {
	suite.Suite
	log    *audit.Log
	router http.Handler
	token  string
	docID  id.DocumentID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.log = audit.New(memory.NewInMemoryStore())
	service, err := pipeline.New(s.log)
	s.Require().NoError(err)

	jwtService := jwttoken.NewJWTService("test-signing-key", "regassist-test", "regassist")
	s.token, err = jwtService.GenerateAccessToken("jane", id.RoleAnalyst, time.Hour)
	s.Require().NoError(err)

	handler := httptransport.New(service, s.log, testutil.DiscardLogger(),
		httptransport.WithJWTValidator(jwttoken.NewJWTServiceAdapter(jwtService)),
		httptransport.WithHealthCheck("audit", func(context.Context) error { return nil }),
	)
	s.router = httptransport.NewRouter(handler)
	s.docID = id.NewDocumentID()
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	return testutil.Do(s.T(), s.router, method, path, body, testutil.WithBearer(s.token))
}

func (s *HandlerSuite) segment(content, version string, classify bool) httptransport.VersionResponse {
	w := s.do(http.MethodPost, "/v1/documents/segment", httptransport.SegmentRequest{
		DocumentID: s.docID.String(),
		Title:      "DORA",
		Version:    version,
		Content:    content,
		Classify:   classify,
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	return *testutil.UnmarshalResponse[httptransport.VersionResponse](s.T(), w)
}

func (s *HandlerSuite) TestHealth() {
	w := testutil.Do(s.T(), s.router, http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok","checks":{"audit":"ok"}}`, w.Body.String())
}

func (s *HandlerSuite) TestRequiresBearerToken() {
	w := testutil.Do(s.T(), s.router, http.MethodGet, "/v1/audit", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = testutil.Do(s.T(), s.router, http.MethodGet, "/v1/audit", nil, testutil.WithBearer("not-a-token"))
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlerSuite) TestSegment() {
	s.Run("segments and attributes the audit entry to the token subject", func() {
		resp := s.segment(final, "2024", false)
		s.Equal(s.docID.String(), resp.DocumentID)
		s.Equal("2024", resp.Version)
		s.Require().Len(resp.Clauses, 3)
		s.Equal("Article 5 - Governance and organisation", resp.Clauses[1].Title)
		s.Empty(resp.Clauses[1].RiskLevel)

		items, err := audit.Collect(s.log.Query(context.Background(), audit.Filter{Actions: []audit.Action{audit.ActionDocumentSegmented}}))
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.Equal("jane", items[0].Actor)
		s.Equal(id.RoleAnalyst, items[0].Role)
		s.NotEmpty(items[0].RequestID)
	})

	s.Run("caller request id is recorded in the audit entry", func() {
		w := testutil.Do(s.T(), s.router, http.MethodPost, "/v1/documents/segment",
			httptransport.SegmentRequest{DocumentID: s.docID.String(), Version: "2025", Content: final},
			testutil.WithBearer(s.token),
			testutil.WithHeader("X-Request-ID", "ingest-2025"),
		)
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
		s.Equal("ingest-2025", w.Header().Get("X-Request-ID"))

		items, err := audit.Collect(s.log.Query(context.Background(), audit.Filter{Actions: []audit.Action{audit.ActionDocumentSegmented}, Limit: 1}))
		s.Require().NoError(err)
		s.Require().Len(items, 1)
		s.Equal("ingest-2025", items[0].RequestID)
	})

	s.Run("classify flag annotates clauses", func() {
		resp := s.segment(final, "2024", true)
		s.Equal("high", resp.Clauses[1].RiskLevel)
		s.Contains(resp.Clauses[1].Tags, "Governance")
	})

	s.Run("missing version is a validation error", func() {
		w := s.do(http.MethodPost, "/v1/documents/segment", httptransport.SegmentRequest{Content: final})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "validation_error")
	})

	s.Run("empty document is a segmentation error", func() {
		w := s.do(http.MethodPost, "/v1/documents/segment", httptransport.SegmentRequest{Version: "2024", Content: "  \n"})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "segmentation_error")
	})

	s.Run("undecodable bytes are an encoding error", func() {
		w := s.do(http.MethodPost, "/v1/documents/segment", httptransport.SegmentRequest{
			Version:       "2024",
			ContentBase64: "QXJ0aWNsZSAx/w==",
		})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "encoding_error")
	})

	s.Run("unknown fields are rejected", func() {
		w := s.do(http.MethodPost, "/v1/documents/segment", map[string]string{"version": "1", "body": "x"})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "bad_request")
	})
}

func (s *HandlerSuite) TestDiffChecklistAndExport() {
	before := s.segment(draft, "2023", false)
	after := s.segment(final, "2024", true)

	w := s.do(http.MethodPost, "/v1/diff", httptransport.DiffRequest{Source: &before, Target: &after})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var res diff.Result
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&res))
	s.Equal(diff.Stats{Unchanged: 1, Modified: 1, Added: 1}, res.Stats)

	w = s.do(http.MethodPost, "/v1/checklist", httptransport.ChecklistRequest{Version: &after, Diff: &res})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var list httptransport.ChecklistResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&list))
	s.Equal("2024", list.Version)
	s.Require().Len(list.Items, 2)
	s.Equal(1, list.Mandatory)
	s.Equal(checklist.PriorityHigh, list.Items[0].Priority)
	s.Equal(checklist.PriorityLow, list.Items[1].Priority)

	w = s.do(http.MethodPost, "/v1/checklist/export", httptransport.ExportRequest{ResourceID: s.docID.String(), Items: list.Items})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var table checklist.Table
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&table))
	s.Equal([]string{"task", "priority", "owner", "sourceRef"}, table.Columns)
	s.Len(table.Rows, 2)

	s.Run("diff target must match the checklist version", func() {
		w := s.do(http.MethodPost, "/v1/checklist", httptransport.ChecklistRequest{Version: &before, Diff: &res})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("versions of different documents cannot be compared", func() {
		other := before
		other.DocumentID = id.NewDocumentID().String()
		w := s.do(http.MethodPost, "/v1/diff", httptransport.DiffRequest{Source: &other, Target: &after})
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "different documents")
	})
}

func (s *HandlerSuite) TestAudit() {
	s.segment(draft, "2023", false)
	s.segment(final, "2024", true)

	s.Run("newest first with filters", func() {
		w := s.do(http.MethodGet, "/v1/audit?action=document_segmented&limit=1", nil)
		s.Require().Equal(http.StatusOK, w.Code)
		var resp httptransport.AuditResponse
		s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
		s.Require().Equal(1, resp.Count)
		s.Equal("2024", resp.Items[0].Details["version"])
		s.Equal("jane", resp.Items[0].Actor)
		s.NotEmpty(resp.Items[0].Hash)
	})

	s.Run("all entries", func() {
		w := s.do(http.MethodGet, "/v1/audit?resourceId="+s.docID.String(), nil)
		s.Require().Equal(http.StatusOK, w.Code)
		var resp httptransport.AuditResponse
		s.Require().NoError(json.NewDecoder(w.Body).Decode(&resp))
		s.Equal(3, resp.Count)
		for i := 1; i < len(resp.Items); i++ {
			s.Greater(resp.Items[i-1].ID, resp.Items[i].ID)
		}
	})

	tests := []struct {
		name  string
		query string
	}{
		{"bad limit", "limit=0"},
		{"bad role", "role=owner"},
		{"bad since", "since=yesterday"},
		{"inverted range", "since=2024-02-01T00:00:00Z&until=2024-01-01T00:00:00Z"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.do(http.MethodGet, "/v1/audit?"+tt.query, nil)
			s.Equal(http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandlerErrorMapping(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockPipeline := mocks.NewMockPipeline(ctrl)
	mockAudit := mocks.NewMockAuditReader(ctrl)
	router := httptransport.NewRouter(httptransport.New(mockPipeline, mockAudit, testutil.DiscardLogger()))

	t.Run("internal errors hide their message", func(t *testing.T) {
		mockPipeline.EXPECT().
			Ingest(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("disk on fire"))

		w := testutil.Do(t, router, http.MethodPost, "/v1/documents/segment", httptransport.SegmentRequest{Version: "1", Content: "x"})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "disk on fire")
	})

	t.Run("resource limit maps to 413", func(t *testing.T) {
		mockPipeline.EXPECT().
			Compare(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, &pipeline.StageError{Stage: pipeline.StageDiff, Err: &diff.ResourceLimitError{Count: 6000, Limit: 5000}})

		v := &httptransport.VersionPayload{DocumentID: id.NewDocumentID().String(), Version: "1"}
		w := testutil.Do(t, router, http.MethodPost, "/v1/diff", httptransport.DiffRequest{Source: v, Target: v})
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "resource_limit")
	})

	t.Run("audit store failure", func(t *testing.T) {
		mockAudit.EXPECT().
			Query(gomock.Any(), gomock.Any()).
			Return(func(yield func(audit.Item, error) bool) {
				yield(audit.Item{}, errors.New("store unavailable"))
			})

		w := testutil.Do(t, router, http.MethodGet, "/v1/audit", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("request id is echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", bytes.NewReader(nil))
		req.Header.Set("X-Request-ID", "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	})
}

func TestAuditPageLimit(t *testing.T) {
	tests := []struct {
		name  string
		query string
		limit int
	}{
		{"defaults when absent", "", 100},
		{"caller value", "?limit=25", 25},
		{"capped", "?limit=5000", 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockAudit := mocks.NewMockAuditReader(ctrl)
			router := httptransport.NewRouter(httptransport.New(mocks.NewMockPipeline(ctrl), mockAudit, testutil.DiscardLogger()))

			mockAudit.EXPECT().
				Query(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, f audit.Filter) iter.Seq2[audit.Item, error] {
					assert.Equal(t, tt.limit, f.Limit)
					return func(func(audit.Item, error) bool) {}
				})

			w := testutil.Do(t, router, http.MethodGet, "/v1/audit"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		})
	}
}

func TestRateLimitedRoutes(t *testing.T) {
	log := audit.New(memory.NewInMemoryStore())
	service, err := pipeline.New(log)
	require.NoError(t, err)
	limiter := ratelimit.New(0.001, 1, testutil.DiscardLogger())
	router := httptransport.NewRouter(httptransport.New(service, log, testutil.DiscardLogger(),
		httptransport.WithRateLimiter(limiter),
	))

	assert.Equal(t, http.StatusOK, testutil.Do(t, router, http.MethodGet, "/v1/audit", nil).Code)
	w := testutil.Do(t, router, http.MethodGet, "/v1/audit", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, testutil.Do(t, router, http.MethodGet, "/healthz", nil).Code, "health is not throttled")
}
