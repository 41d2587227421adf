// Package kafka streams audit events to the compliance pipeline.
// Kafka is the durable fan-out point: the audit-log and dashboard layers
// consume from the topic, keyed by project so per-project history stays
// ordered within a partition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	audit "subsidyledger/pkg/platform/audit"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Store implements audit.Store by producing JSON records to a topic.
type Store struct {
	client *kgo.Client
	topic  string
}

// payload is the wire shape. Field names are part of the consumer
// contract; do not rename without versioning the topic.
type payload struct {
	Action      string `json:"action"`
	Category    string `json:"category"`
	Timestamp   string `json:"timestamp"`
	Actor       string `json:"actor,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	ProjectID   uint64 `json:"project_id,omitempty"`
	MilestoneID uint64 `json:"milestone_id,omitempty"`
	Source      string `json:"source,omitempty"`
	DataID      string `json:"data_id,omitempty"`
	Amount      uint64 `json:"amount,omitempty"`
	Decision    string `json:"decision,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// New connects to the brokers and ensures the topic exists before any
// event is emitted, so a fresh environment doesn't drop early events
// into auto-creation limbo.
func New(ctx context.Context, brokers []string, topic string) (*Store, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, 3, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
	}
	// Already-exists is fine; any other creation error is not.
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, resp.Err)
	}

	return &Store{client: client, topic: topic}, nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	body, err := encode(event)
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.ProjectID.String()),
		Value: body,
	}
	return s.client.ProduceSync(ctx, record).FirstErr()
}

func encode(event audit.Event) ([]byte, error) {
	body, err := json.Marshal(payload{
		Action:      string(event.Action),
		Category:    string(event.Action.Category()),
		Timestamp:   event.Timestamp.Format(time.RFC3339Nano),
		Actor:       string(event.Actor),
		RequestID:   event.RequestID,
		ProjectID:   uint64(event.ProjectID),
		MilestoneID: uint64(event.MilestoneID),
		Source:      string(event.Source),
		DataID:      string(event.DataID),
		Amount:      uint64(event.Amount),
		Decision:    event.Decision,
		Reason:      event.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal audit event: %w", err)
	}
	return body, nil
}

func (s *Store) Close() error {
	s.client.Close()
	return nil
}
