package document

import (
	"fmt"

	dErrors "regassist/pkg/domain-errors"
)

var (
	errEncoding     = dErrors.New(dErrors.CodeEncoding, "document text cannot be decoded")
	errSegmentation = dErrors.New(dErrors.CodeSegmentation, "document has no text to segment")
)

// EncodingError reports bytes that cannot be decoded with the declared encoding.
// It is fatal for the document: no partial output is produced.
type EncodingError struct {
	Encoding string
	// Offset is the byte offset of the first undecodable sequence, or -1 when unknown.
	Offset int
	Err    error
}

func (e *EncodingError) Error() string {
	msg := fmt.Sprintf("decode %q", e.Encoding)
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at byte %d", e.Offset)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodingError) Unwrap() []error {
	if e.Err == nil {
		return []error{errEncoding}
	}
	return []error{errEncoding, e.Err}
}

// SegmentationError reports input with no text at all.
type SegmentationError struct {
	Version string
}

func (e *SegmentationError) Error() string {
	return fmt.Sprintf("segment version %q: input is empty", e.Version)
}

func (e *SegmentationError) Unwrap() error {
	return errSegmentation
}
