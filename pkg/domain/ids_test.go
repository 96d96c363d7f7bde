package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "regassist/pkg/domain-errors"
)

// TestParseDocumentID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
func TestParseDocumentID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseDocumentID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseDocumentID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseDocumentID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseDocumentID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, DocumentID(validUUID), id)
		assert.Equal(t, validUUID.String(), id.String())
	})
}

func TestParseDocumentID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE audit_log;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocumentID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("analyst")
	require.NoError(t, err)
	assert.Equal(t, RoleAnalyst, r)

	_, err = ParseRole("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseRole("superuser")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestDocumentIDText(t *testing.T) {
	t.Run("round-trips through JSON", func(t *testing.T) {
		in := struct {
			ID DocumentID `json:"id"`
		}{ID: NewDocumentID()}
		b, err := json.Marshal(in)
		require.NoError(t, err)
		assert.Contains(t, string(b), in.ID.String())

		var out struct {
			ID DocumentID `json:"id"`
		}
		require.NoError(t, json.Unmarshal(b, &out))
		assert.Equal(t, in.ID, out.ID)
	})

	t.Run("nil id round-trips", func(t *testing.T) {
		var d DocumentID
		b, err := d.MarshalText()
		require.NoError(t, err)
		var out DocumentID
		require.NoError(t, out.UnmarshalText(b))
		assert.True(t, out.IsNil())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		var out DocumentID
		err := out.UnmarshalText([]byte("nope"))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
