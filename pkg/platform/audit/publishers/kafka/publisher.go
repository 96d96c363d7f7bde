// Package kafka forwards appended audit items to a Kafka topic so downstream
// compliance systems can mirror the trail. The audit store stays the system
// of record; the topic is a copy.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "regassist/pkg/platform/audit"
)

// Message is the JSON value written for each item. Records are keyed by
// resource id so all items about one document land on one partition.
type Message struct {
	ID         uint64            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Action     string            `json:"action"`
	Actor      string            `json:"actor"`
	Role       string            `json:"role"`
	ResourceID string            `json:"resource_id"`
	Details    map[string]string `json:"details,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Client     string            `json:"client,omitempty"`
	PrevHash   string            `json:"prev_hash"`
	Hash       string            `json:"hash"`
}

// MessageFrom converts an item to its wire form.
func MessageFrom(it audit.Item) Message {
	return Message{
		ID:         it.ID,
		Timestamp:  it.Timestamp,
		Action:     string(it.Action),
		Actor:      it.Actor,
		Role:       string(it.Role),
		ResourceID: it.ResourceID,
		Details:    it.Details,
		RequestID:  it.RequestID,
		Client:     it.Client,
		PrevHash:   it.PrevHash,
		Hash:       it.Hash,
	}
}

// Publisher produces audit items to one topic.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New connects a producer for topic.
func New(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("kafka publisher requires brokers and a topic")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	p := &Publisher{client: client, topic: topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// EnsureTopic creates the topic when it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish produces one item and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, item audit.Item) error {
	value, err := json.Marshal(MessageFrom(item))
	if err != nil {
		return fmt.Errorf("marshal audit message: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(item.ResourceID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(item.Action)},
			{Key: "hash", Value: []byte(item.Hash)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.logger.WarnContext(ctx, "kafka audit publish failed",
			"topic", p.topic,
			"audit_id", item.ID,
			"error", err,
		)
		return fmt.Errorf("produce audit item %d: %w", item.ID, err)
	}
	return nil
}

// Ping checks broker connectivity for readiness checks.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Publisher) Close() error {
	p.client.Close()
	return nil
}
