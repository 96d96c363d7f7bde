// Package sentinel holds the storage facts that audit stores report.
//
// Stores wrap these with %w; the audit log turns them into coded domain
// errors so the HTTP and CLI layers never inspect driver errors:
//   - ErrConflict: the item does not extend the stored chain head
//   - ErrUnavailable: the store cannot be reached or has been closed
package sentinel

import "errors"

var (
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
