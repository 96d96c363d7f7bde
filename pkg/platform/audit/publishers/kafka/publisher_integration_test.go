//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "regassist/pkg/platform/audit"
	"regassist/pkg/platform/audit/publishers/kafka"
	"regassist/pkg/platform/audit/store/memory"
	"regassist/pkg/testutil/containers"
)

type PublisherSuite struct {
	suite.Suite
	brokers []string
}

func TestPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupSuite() {
	s.brokers = containers.GetManager().GetRedpanda(s.T()).Brokers
}

func (s *PublisherSuite) TestAppendedItemsReachTheTopic() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "regassist.audit.test"
	pub, err := kafka.New(s.brokers, topic)
	s.Require().NoError(err)
	defer pub.Close()
	s.Require().NoError(pub.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(pub.EnsureTopic(ctx, 1, 1), "second call must tolerate an existing topic")

	log := audit.New(memory.NewInMemoryStore(), audit.WithSink(pub))
	item, err := log.Append(ctx, audit.Entry{
		Action:     audit.ActionVersionsCompared,
		Actor:      "jane",
		ResourceID: "doc-1",
		Details:    map[string]string{"modified": "1"},
	})
	s.Require().NoError(err)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())
	records := fetches.Records()
	s.Require().NotEmpty(records)

	var msg kafka.Message
	s.Require().NoError(json.Unmarshal(records[0].Value, &msg))
	s.Equal("doc-1", string(records[0].Key))
	s.Equal(item.ID, msg.ID)
	s.Equal(item.Hash, msg.Hash)
	s.Equal("versions_compared", msg.Action)
}
