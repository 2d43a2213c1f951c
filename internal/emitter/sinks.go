package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/pubhub-IN/pubhub-sub000/internal/elasticsearch"
	"github.com/pubhub-IN/pubhub-sub000/internal/storage"
	"github.com/pubhub-IN/pubhub-sub000/pkg/models"
)

// ObjectStore is the subset of the storage client the object sink needs.
type ObjectStore interface {
	PutJSON(ctx context.Context, prefix, name string, v any) error
}

// ObjectSink writes the collection as one object under a run prefix.
type ObjectSink struct {
	store  ObjectStore
	prefix string
}

// NewObjectSink creates a sink writing prefix/hackathons.json.
func NewObjectSink(store ObjectStore, prefix string) *ObjectSink {
	return &ObjectSink{store: store, prefix: prefix}
}

func (s *ObjectSink) Name() string { return "object:" + s.prefix }

func (s *ObjectSink) Write(ctx context.Context, listings []models.Listing) error {
	return s.store.PutJSON(ctx, s.prefix, storage.ListingsObject, listings)
}

// Indexer is the subset of the Elasticsearch client the index sink needs.
type Indexer interface {
	IndexListings(ctx context.Context, docs []elasticsearch.Document) (int, error)
}

// IndexSink upserts one document per listing, keyed by the listing ID.
type IndexSink struct {
	indexer Indexer
	runID   string
	now     func() time.Time
}

// NewIndexSink creates an index sink tagging documents with runID.
func NewIndexSink(indexer Indexer, runID string) *IndexSink {
	return &IndexSink{indexer: indexer, runID: runID, now: time.Now}
}

func (s *IndexSink) Name() string { return "elasticsearch" }

func (s *IndexSink) Write(ctx context.Context, listings []models.Listing) error {
	now := s.now().UTC()
	docs := make([]elasticsearch.Document, 0, len(listings))
	for _, l := range listings {
		docs = append(docs, elasticsearch.NewDocument(l, s.runID, now))
	}
	if _, err := s.indexer.IndexListings(ctx, docs); err != nil {
		return err
	}
	return nil
}

// MessageWriter is the subset of kafka.Writer the message sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes one message per listing, keyed by its link so that
// updates to the same listing land on the same partition.
type KafkaSink struct {
	writer MessageWriter
	topic  string
	runID  string
}

// NewKafkaWriter creates a writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:     brokers,
		Topic:       topic,
		Balancer:    &kafka.Hash{},
		MaxAttempts: 3,
	})
}

// NewKafkaSink creates a message sink.
func NewKafkaSink(writer MessageWriter, topic, runID string) *KafkaSink {
	return &KafkaSink{writer: writer, topic: topic, runID: runID}
}

func (s *KafkaSink) Name() string { return "kafka:" + s.topic }

func (s *KafkaSink) Write(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(listings))
	for _, l := range listings {
		value, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("failed to marshal listing %s: %w", l.Link, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(l.Link),
			Value: value,
			Headers: []kafka.Header{
				{Key: "source", Value: []byte(l.Source)},
				{Key: "run_id", Value: []byte(s.runID)},
			},
		})
	}
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish listings: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
