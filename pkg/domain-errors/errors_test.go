package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code", func(t *testing.T) {
		err := New(CodeEncoding, "bad bytes")
		assert.True(t, HasCode(err, CodeEncoding))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("nested codes are all visible", func(t *testing.T) {
		inner := New(CodeResourceLimit, "too many clauses")
		outer := Wrap(inner, CodeValidation, "diff rejected")
		assert.True(t, HasCode(outer, CodeValidation))
		assert.True(t, HasCode(outer, CodeResourceLimit))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("stage failed: %w", New(CodeSegmentation, "empty input"))
		assert.True(t, HasCode(err, CodeSegmentation))
		assert.Equal(t, CodeSegmentation, CodeOf(err))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		code     Code
		expected int
	}{
		{CodeEncoding, http.StatusBadRequest},
		{CodeSegmentation, http.StatusBadRequest},
		{CodeResourceLimit, http.StatusRequestEntityTooLarge},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, ToHTTPStatus(tt.code))
		})
	}
}
