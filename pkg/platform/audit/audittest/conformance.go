// Package audittest holds the behavior every audit.Store must share.
package audittest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "regassist/pkg/domain"
	audit "regassist/pkg/platform/audit"
	"regassist/pkg/platform/sentinel"
)

// StoreSuite exercises an audit.Store through audit.Log. NewStore must
// return an empty store for every test.
type StoreSuite struct {
	suite.Suite
	NewStore func() audit.Store

	store audit.Store
	log   *audit.Log
	clock time.Time
}

// RunStoreSuite runs the conformance suite against stores built by newStore.
func RunStoreSuite(t *testing.T, newStore func() audit.Store) {
	suite.Run(t, &StoreSuite{NewStore: newStore})
}

func (s *StoreSuite) SetupTest() {
	s.store = s.NewStore()
	s.clock = time.Date(2025, 1, 17, 9, 0, 0, 0, time.UTC)
	s.log = audit.New(s.store, audit.WithPageSize(2), audit.WithClock(func() time.Time {
		s.clock = s.clock.Add(time.Second)
		return s.clock
	}))
}

func (s *StoreSuite) appendN(n int) []audit.Item {
	ctx := context.Background()
	actions := []audit.Action{audit.ActionDocumentSegmented, audit.ActionVersionsCompared, audit.ActionChecklistGenerated}
	items := make([]audit.Item, 0, n)
	for i := range n {
		item, err := s.log.Append(ctx, audit.Entry{
			Action:     actions[i%len(actions)],
			Actor:      fmt.Sprintf("user-%d", i%2),
			Role:       id.RoleAnalyst,
			ResourceID: fmt.Sprintf("doc-%d", i%3),
			Details:    map[string]string{"n": fmt.Sprint(i)},
		})
		s.Require().NoError(err)
		items = append(items, item)
	}
	return items
}

func (s *StoreSuite) TestAppendAndQuery() {
	ctx := context.Background()
	appended := s.appendN(5)

	s.Run("query returns newest first across pages", func() {
		items, err := audit.Collect(s.log.Query(ctx, audit.Filter{}))
		s.Require().NoError(err)
		s.Require().Len(items, 5)
		for i, it := range items {
			want := appended[len(appended)-1-i]
			s.Equal(want.ID, it.ID)
			s.True(want.Timestamp.Equal(it.Timestamp))
			s.Equal(want.Hash, it.Hash)
			s.Equal(want.Details, it.Details)
		}
	})

	s.Run("filters push down", func() {
		items, err := audit.Collect(s.log.Query(ctx, audit.Filter{
			Actor:   "user-0",
			Actions: []audit.Action{audit.ActionDocumentSegmented, audit.ActionChecklistGenerated},
		}))
		s.Require().NoError(err)
		// user-0 appended items 0, 2, 4: segmented, generated, compared
		s.Require().Len(items, 2)
		s.Equal(uint64(3), items[0].ID)
		s.Equal(uint64(1), items[1].ID)
	})

	s.Run("time range and limit", func() {
		items, err := audit.Collect(s.log.Query(ctx, audit.Filter{
			Since: appended[1].Timestamp,
			Until: appended[4].Timestamp,
			Limit: 2,
		}))
		s.Require().NoError(err)
		s.Require().Len(items, 2)
		s.Equal(uint64(4), items[0].ID)
		s.Equal(uint64(3), items[1].ID)
	})

	s.Run("sequence is restartable", func() {
		seq := s.log.Query(ctx, audit.Filter{ResourceID: "doc-0"})
		first, err := audit.Collect(seq)
		s.Require().NoError(err)
		second, err := audit.Collect(seq)
		s.Require().NoError(err)
		s.Equal(first, second)
		s.Len(first, 2)
	})
}

func (s *StoreSuite) TestChain() {
	ctx := context.Background()
	s.appendN(4)

	n, err := s.log.Verify(ctx)
	s.Require().NoError(err)
	s.Equal(4, n)
}

func (s *StoreSuite) TestRejectsItemsThatDoNotExtendTheHead() {
	ctx := context.Background()
	items := s.appendN(2)

	stale := items[1]
	stale.Hash = "forged"
	err := s.store.Append(ctx, stale)
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *StoreSuite) TestLogResumesFromStoredHead() {
	ctx := context.Background()
	items := s.appendN(3)

	resumed := audit.New(s.store)
	next, err := resumed.Append(ctx, audit.Entry{Action: audit.ActionPipelineFailed, Actor: "system"})
	s.Require().NoError(err)
	s.Equal(uint64(4), next.ID)
	s.Equal(items[2].Hash, next.PrevHash)
	s.True(next.Timestamp.After(items[2].Timestamp))
}
