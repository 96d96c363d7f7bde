package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regassist/internal/diff"
	"regassist/internal/pipeline"
)

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

type harness struct {
	t      *testing.T
	dir    string
	ledger string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	return &harness{t: t, dir: dir, ledger: filepath.Join(dir, "audit.db")}
}

func (h *harness) path(name string) string {
	return filepath.Join(h.dir, name)
}

func (h *harness) write(name, content string) string {
	h.t.Helper()
	require.NoError(h.t, os.WriteFile(h.path(name), []byte(content), 0o600))
	return h.path(name)
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--ledger", h.ledger, "--actor", "jane"}, args...))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err)
	return out
}

func readFile[T any](t *testing.T, path string) T {
	t.Helper()
	var v T
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &v))
	return v
}

func TestWorkflow(t *testing.T) {
	h := newHarness(t)

	h.mustRun("segment", h.write("draft.txt", draft), "--version", "2023", "--title", "DORA", "-o", h.path("v1.json"))
	v1 := readFile[pipeline.Version](t, h.path("v1.json"))
	require.False(t, v1.Metadata.DocumentID.IsNil())
	require.Len(t, v1.Clauses, 2)
	assert.Empty(t, v1.Clauses[1].RiskLevel)

	h.mustRun("segment", h.write("final.txt", final), "--version", "2024",
		"--document-id", v1.Metadata.DocumentID.String(), "--classify", "-o", h.path("v2.json"))
	v2 := readFile[pipeline.Version](t, h.path("v2.json"))
	require.Len(t, v2.Clauses, 3)
	assert.Equal(t, "high", string(v2.Clauses[1].RiskLevel))

	h.mustRun("diff", h.path("v1.json"), h.path("v2.json"), "-o", h.path("changes.json"))
	res := readFile[diff.Result](t, h.path("changes.json"))
	assert.Equal(t, diff.Stats{Unchanged: 1, Modified: 1, Added: 1}, res.Stats)

	summary := h.mustRun("diff", h.path("v1.json"), h.path("v2.json"), "--summary")
	assert.Contains(t, summary, "2023 -> 2024: 1 added, 0 removed, 1 modified, 1 unchanged")

	csv := h.mustRun("checklist", h.path("v2.json"), "--diff", h.path("changes.json"), "--export", "csv")
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "task,priority,owner,sourceRef", lines[0])
	assert.Contains(t, lines[1], "High")
	assert.Contains(t, lines[2], "Low")

	listing := h.mustRun("audit", "list", "--action", "checklist_exported")
	assert.Contains(t, listing, "checklist_exported")
	assert.Contains(t, listing, "jane")
	assert.NotContains(t, listing, "document_segmented")

	verified := h.mustRun("audit", "verify")
	assert.Contains(t, verified, "7 entries verified")
}

func TestErrors(t *testing.T) {
	h := newHarness(t)

	t.Run("version flag is required", func(t *testing.T) {
		_, err := h.run("segment", h.write("draft.txt", draft))
		assert.ErrorContains(t, err, "version")
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := h.run("--role", "owner", "audit", "list")
		assert.ErrorContains(t, err, "--role")
	})

	t.Run("empty document", func(t *testing.T) {
		_, err := h.run("segment", h.write("empty.txt", "\n\n"), "--version", "1")
		assert.ErrorContains(t, err, "segment stage failed")
	})

	t.Run("versions of different documents", func(t *testing.T) {
		h.mustRun("segment", h.path("draft.txt"), "--version", "a", "-o", h.path("a.json"))
		h.mustRun("segment", h.write("final.txt", final), "--version", "b", "-o", h.path("b.json"))
		_, err := h.run("diff", h.path("a.json"), h.path("b.json"))
		assert.ErrorContains(t, err, "different documents")
	})

	t.Run("not a version file", func(t *testing.T) {
		_, err := h.run("classify", h.write("junk.json", `{"clauses":[]}`))
		assert.ErrorContains(t, err, "not a version file")
	})
}
