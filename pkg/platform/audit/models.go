// Package audit implements the append-only audit trail shared by every
// compliance operation.
//
// Log is the only writer. It serializes appends, assigns monotonic ids and
// timestamps, chains each item to its predecessor by hash, and delegates
// persistence to a Store. Stores expose no update or delete operation.
package audit

import (
	"context"
	"time"

	id "regassist/pkg/domain"
	"regassist/pkg/requestcontext"
)

// Action names an audited operation.
type Action string

const (
	ActionDocumentSegmented      Action = "document_segmented"
	ActionClausesClassified      Action = "clauses_classified"
	ActionClassificationFallback Action = "classification_fallback"
	ActionVersionsCompared       Action = "versions_compared"
	ActionChecklistGenerated     Action = "checklist_generated"
	ActionChecklistExported      Action = "checklist_exported"
	ActionPipelineFailed         Action = "pipeline_failed"
)

func (a Action) String() string {
	return string(a)
}

// Entry is what callers ask the log to record.
type Entry struct {
	Action     Action
	Actor      string
	Role       id.Role
	ResourceID string
	Details    map[string]string
	RequestID  string
	Client     string
}

// EntryFrom builds an entry attributed to the caller in ctx.
func EntryFrom(ctx context.Context, action Action, resourceID string, details map[string]string) Entry {
	auth := requestcontext.Authorization(ctx)
	return Entry{
		Action:     action,
		Actor:      auth.Actor,
		Role:       auth.Role,
		ResourceID: resourceID,
		Details:    details,
		RequestID:  requestcontext.RequestID(ctx),
		Client:     requestcontext.Client(ctx),
	}
}

// Item is an appended, immutable audit record.
type Item struct {
	ID         uint64
	Timestamp  time.Time
	Action     Action
	Actor      string
	Role       id.Role
	ResourceID string
	Details    map[string]string
	RequestID  string
	Client     string
	// PrevHash is the Hash of the item with ID-1, empty for the first item.
	PrevHash string
	Hash     string
}

// Filter selects items in a query. Zero fields match everything.
type Filter struct {
	Actor      string
	Role       id.Role
	Actions    []Action
	ResourceID string
	// Since and Until bound the timestamp, inclusive and exclusive respectively.
	Since time.Time
	Until time.Time
	// Limit caps the number of items yielded; zero means no cap.
	Limit int
}

// Matches reports whether it satisfies every non-zero criterion of f.
// Stores that cannot push filters down to their backend use it directly.
func (f Filter) Matches(it Item) bool {
	if f.Actor != "" && it.Actor != f.Actor {
		return false
	}
	if f.Role != "" && it.Role != f.Role {
		return false
	}
	if f.ResourceID != "" && it.ResourceID != f.ResourceID {
		return false
	}
	if !f.Since.IsZero() && it.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !it.Timestamp.Before(f.Until) {
		return false
	}
	if len(f.Actions) > 0 {
		for _, a := range f.Actions {
			if a == it.Action {
				return true
			}
		}
		return false
	}
	return true
}

// Store persists audit items. Implementations must reject an item whose ID
// is not exactly one past the stored maximum with an error wrapping
// sentinel.ErrConflict, so concurrent writers cannot interleave.
type Store interface {
	Append(ctx context.Context, item Item) error
	// Last returns the item with the highest id; ok is false for an empty store.
	Last(ctx context.Context) (item Item, ok bool, err error)
	// Page returns up to size items with ID < beforeID matching f, highest id first.
	// f.Limit is ignored.
	Page(ctx context.Context, f Filter, beforeID uint64, size int) ([]Item, error)
}

// Sink receives items after they are durably stored.
type Sink interface {
	Publish(ctx context.Context, item Item) error
}
