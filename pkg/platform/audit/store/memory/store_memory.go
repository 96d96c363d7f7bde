package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	audit "regassist/pkg/platform/audit"
	"regassist/pkg/platform/sentinel"
)

// InMemoryStore keeps items in id order. Used by tests and single-process runs.
type InMemoryStore struct {
	mu    sync.RWMutex
	items []audit.Item
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, item audit.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if want := uint64(len(s.items)) + 1; item.ID != want {
		return fmt.Errorf("audit item %d, expected %d: %w", item.ID, want, sentinel.ErrConflict)
	}
	item.Details = maps.Clone(item.Details)
	s.items = append(s.items, item)
	return nil
}

func (s *InMemoryStore) Last(_ context.Context) (audit.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return audit.Item{}, false, nil
	}
	return clone(s.items[len(s.items)-1]), true, nil
}

// Page scans backwards from beforeID. Ids are dense, so item n sits at index n-1.
func (s *InMemoryStore) Page(_ context.Context, f audit.Filter, beforeID uint64, size int) ([]audit.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.items) - 1
	if beforeID <= uint64(len(s.items)) {
		start = int(beforeID) - 2
	}
	var page []audit.Item
	for i := start; i >= 0 && len(page) < size; i-- {
		if f.Matches(s.items[i]) {
			page = append(page, clone(s.items[i]))
		}
	}
	return page, nil
}

// Len returns the number of stored items.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// clone detaches the details map so callers cannot mutate stored items.
func clone(it audit.Item) audit.Item {
	it.Details = maps.Clone(it.Details)
	return it
}
