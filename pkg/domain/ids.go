package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "regassist/pkg/domain-errors"
)

// DocumentID identifies a regulatory document across all of its versions.
type DocumentID uuid.UUID

// NewDocumentID returns a random document id.
func NewDocumentID() DocumentID {
	return DocumentID(uuid.New())
}

// ParseDocumentID constructs a DocumentID from external input.
//
// Errors: returns CodeInvalidInput for empty, malformed, or nil UUIDs.
func ParseDocumentID(s string) (DocumentID, error) {
	if strings.TrimSpace(s) == "" {
		return DocumentID{}, dErrors.New(dErrors.CodeInvalidInput, "document id cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return DocumentID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid document id")
	}
	if parsed == uuid.Nil {
		return DocumentID{}, dErrors.New(dErrors.CodeInvalidInput, "document id cannot be nil")
	}
	return DocumentID(parsed), nil
}

func (d DocumentID) String() string {
	return uuid.UUID(d).String()
}

// IsNil reports whether the id is the zero UUID.
func (d DocumentID) IsNil() bool {
	return uuid.UUID(d) == uuid.Nil
}

// MarshalText encodes the id in canonical UUID form.
func (d DocumentID) MarshalText() ([]byte, error) {
	return uuid.UUID(d).MarshalText()
}

// UnmarshalText accepts any form uuid.Parse accepts. Empty input and the nil
// UUID both decode to the nil id so unassigned ids round-trip.
func (d *DocumentID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = DocumentID{}
		return nil
	}
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid document id")
	}
	*d = DocumentID(parsed)
	return nil
}
