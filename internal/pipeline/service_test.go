package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"regassist/internal/checklist"
	"regassist/internal/diff"
	"regassist/internal/document"
	"regassist/internal/risk"
	id "regassist/pkg/domain"
	dErrors "regassist/pkg/domain-errors"
	"regassist/pkg/platform/audit"
	"regassist/pkg/platform/audit/store/memory"
	"regassist/pkg/testutil"
)

const draft = `REGULATION ON DIGITAL OPERATIONAL RESILIENCE

Article 1
Subject matter
This Regulation lays down uniform requirements concerning the security of network and information systems.

Article 5
Governance and organisation
Financial entities shall have in place an internal governance framework for ICT risk.
`

const final = `REGULATION ON DIGITAL OPERATIONAL RESILIENCE

Article 1
Subject matter
This Regulation lays down uniform requirements concerning the security of network and information systems.

Article 5
Governance and organisation
Financial entities shall have in place an internal governance and control framework that ensures an effective and prudent management of ICT risk.

Article 6
Register of information
Financial entities may publish an annual summary of their ICT arrangements.
`

type ServiceSuite struct {
	suite.Suite
	log     *audit.Log
	service *Service
	ctx     context.Context
	docID   id.DocumentID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.log = audit.New(memory.NewInMemoryStore())
	var err error
	s.service, err = New(s.log)
	s.Require().NoError(err)
	s.ctx = testutil.AuthorizedContext(context.Background(), "jane", id.RoleAnalyst)
	s.docID = id.NewDocumentID()
}

func (s *ServiceSuite) raw(content, label string) document.RawDocument {
	return document.RawDocument{
		Content:  []byte(content),
		Encoding: "utf-8",
		Metadata: document.Metadata{DocumentID: s.docID, Title: "DORA", VersionLabel: label},
	}
}

func (s *ServiceSuite) entries(actions ...audit.Action) []audit.Item {
	items, err := audit.Collect(s.log.Query(context.Background(), audit.Filter{Actions: actions}))
	s.Require().NoError(err)
	return items
}

func (s *ServiceSuite) TestNew() {
	_, err := New(nil)
	s.ErrorContains(err, "audit recorder is required")
}

func (s *ServiceSuite) TestProcess() {
	v, err := s.service.Process(s.ctx, s.raw(final, "2024"))
	s.Require().NoError(err)

	titles := make([]string, len(v.Clauses))
	for i, c := range v.Clauses {
		titles[i] = c.Title
		s.Equal(i+1, c.Ordinal)
		s.Equal("2024", c.Version)
		s.NotEmpty(c.RiskLevel)
	}
	s.Equal([]string{
		"Preamble",
		"Article 1 - Subject matter",
		"Article 5 - Governance and organisation",
		"Article 6 - Register of information",
	}, titles)
	s.Equal(document.RiskHigh, v.Clauses[2].RiskLevel)
	s.Contains(v.Clauses[2].Tags, "Governance")

	segmented := s.entries(audit.ActionDocumentSegmented)
	s.Require().Len(segmented, 1)
	s.Equal("jane", segmented[0].Actor)
	s.Equal(id.RoleAnalyst, segmented[0].Role)
	s.Equal(s.docID.String(), segmented[0].ResourceID)
	s.Equal("4", segmented[0].Details["clauses"])
	s.Equal("13", segmented[0].Details["lines"], "normalized lines, trailing newline dropped")

	classified := s.entries(audit.ActionClausesClassified)
	s.Require().Len(classified, 1)
	s.Equal("4", classified[0].Details[string(risk.SourceRuleBased)])
}

func (s *ServiceSuite) TestCompareAndChecklist() {
	before, err := s.service.Ingest(s.ctx, s.raw(draft, "2023"))
	s.Require().NoError(err)
	after, err := s.service.Process(s.ctx, s.raw(final, "2024"))
	s.Require().NoError(err)

	res, err := s.service.Compare(s.ctx, before, after)
	s.Require().NoError(err)
	s.Equal(diff.Stats{Unchanged: 2, Modified: 1, Added: 1}, res.Stats)

	items, err := s.service.ChecklistFromDiff(s.ctx, res, after)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	s.True(items[0].IsMandatory)
	s.Equal(checklist.PriorityHigh, items[0].Priority, "high-risk clause")
	s.False(items[1].IsMandatory)
	s.Equal(checklist.PriorityLow, items[1].Priority)

	table, err := s.service.Export(s.ctx, s.docID.String(), items)
	s.Require().NoError(err)
	s.Len(table.Rows, 2)

	compared := s.entries(audit.ActionVersionsCompared)
	s.Require().Len(compared, 1)
	s.Equal("1", compared[0].Details["modified"])
	s.Equal("2023", compared[0].Details["source_version"])

	generated := s.entries(audit.ActionChecklistGenerated)
	s.Require().Len(generated, 1)
	s.Equal("changes", generated[0].Details["scope"])
	s.Len(s.entries(audit.ActionChecklistExported), 1)

	// audit trail is newest first and covers every stage in order
	all := s.entries()
	actions := make([]audit.Action, len(all))
	for i, it := range all {
		actions[i] = it.Action
	}
	s.Equal([]audit.Action{
		audit.ActionChecklistExported,
		audit.ActionChecklistGenerated,
		audit.ActionVersionsCompared,
		audit.ActionClausesClassified,
		audit.ActionDocumentSegmented,
		audit.ActionDocumentSegmented,
	}, actions)
}

func (s *ServiceSuite) TestCompareRejectsDifferentDocuments() {
	a, err := s.service.Ingest(s.ctx, s.raw(draft, "2023"))
	s.Require().NoError(err)
	b := *a
	b.Metadata.DocumentID = id.NewDocumentID()

	_, err = s.service.Compare(s.ctx, a, &b)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestMissingVersionsAreValidationErrors() {
	v, err := s.service.Ingest(s.ctx, s.raw(draft, "2023"))
	s.Require().NoError(err)
	res, err := s.service.Compare(s.ctx, v, v)
	s.Require().NoError(err)
	before := len(s.entries())

	tests := []struct {
		name string
		call func() error
	}{
		{"classify", func() error { _, err := s.service.Classify(s.ctx, nil); return err }},
		{"compare source", func() error { _, err := s.service.Compare(s.ctx, nil, v); return err }},
		{"compare target", func() error { _, err := s.service.Compare(s.ctx, v, nil); return err }},
		{"checklist", func() error { _, err := s.service.Checklist(s.ctx, nil); return err }},
		{"checklist from diff target", func() error { _, err := s.service.ChecklistFromDiff(s.ctx, res, nil); return err }},
		{"checklist from diff result", func() error { _, err := s.service.ChecklistFromDiff(s.ctx, nil, v); return err }},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := tt.call()
			s.Require().Error(err)
			s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
		})
	}
	s.Len(s.entries(), before, "rejected calls leave no audit entries")
}

func (s *ServiceSuite) TestFatalStageErrors() {
	s.Run("encoding error stops at normalize", func() {
		s.SetupTest()
		raw := s.raw("", "2024")
		raw.Content = []byte{0xff, 0xfe, 0xfd}

		_, err := s.service.Ingest(s.ctx, raw)
		s.Require().Error(err)

		var stageErr *StageError
		s.Require().True(errors.As(err, &stageErr))
		s.Equal(StageNormalize, stageErr.Stage)
		s.Equal(s.docID, stageErr.DocumentID)
		s.Equal("2024", stageErr.Version)
		s.True(dErrors.HasCode(err, dErrors.CodeEncoding))

		failed := s.entries(audit.ActionPipelineFailed)
		s.Require().Len(failed, 1)
		s.Equal("normalize", failed[0].Details["stage"])
		s.Equal(string(dErrors.CodeEncoding), failed[0].Details["code"])
		s.Empty(s.entries(audit.ActionDocumentSegmented))
	})

	s.Run("blank input fails segmentation", func() {
		s.SetupTest()
		_, err := s.service.Ingest(s.ctx, s.raw(" \n\n \n", "2024"))

		var stageErr *StageError
		s.Require().True(errors.As(err, &stageErr))
		s.Equal(StageSegment, stageErr.Stage)
		s.True(dErrors.HasCode(err, dErrors.CodeSegmentation))
		s.Len(s.entries(audit.ActionPipelineFailed), 1)
	})

	s.Run("oversized diff is a resource limit", func() {
		s.SetupTest()
		svc, err := New(s.log, WithDiffEngine(diff.New(diff.WithMaxClauses(2))))
		s.Require().NoError(err)
		v, err := svc.Ingest(s.ctx, s.raw(final, "2024"))
		s.Require().NoError(err)

		_, err = svc.Compare(s.ctx, v, v)
		var limitErr *diff.ResourceLimitError
		s.Require().True(errors.As(err, &limitErr))
		s.Equal(4, limitErr.Count)
		s.True(dErrors.HasCode(err, dErrors.CodeResourceLimit))
	})

	s.Run("missing version label is rejected before any stage", func() {
		s.SetupTest()
		_, err := s.service.Ingest(s.ctx, s.raw(final, ""))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Empty(s.entries())
	})
}

type brokenRecorder struct{}

func (brokenRecorder) Append(context.Context, audit.Entry) (audit.Item, error) {
	return audit.Item{}, errors.New("ledger unavailable")
}

func (s *ServiceSuite) TestAuditFailureFailsTheStage() {
	svc, err := New(brokenRecorder{})
	s.Require().NoError(err)

	_, err = svc.Ingest(s.ctx, s.raw(final, "2024"))
	var stageErr *StageError
	s.Require().True(errors.As(err, &stageErr))
	s.Equal(StageSegment, stageErr.Stage)
	s.ErrorContains(err, "ledger unavailable")
}
