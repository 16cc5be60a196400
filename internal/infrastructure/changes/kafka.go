package changes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"go-topic-relay/internal/infrastructure/config"
	"go-topic-relay/internal/infrastructure/hub"
	"go-topic-relay/internal/infrastructure/logger"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource consumes change records from a Kafka topic. The record key is
// the relay topic; a JSON object value is stored as the topic's new content
// first. Records without a key carry the relay topic as their value.
type KafkaSource struct {
	reader messageReader
	marker Marker
	store  ContentWriter
	logger logger.Logger
}

// NewKafkaSource creates the consumer. store may be nil, in which case
// record values are only used to name the topic.
func NewKafkaSource(cfg config.KafkaConfig, marker Marker, store ContentWriter, log logger.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker address is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  500 * time.Millisecond,
	})

	return newKafkaSource(reader, marker, store, log), nil
}

func newKafkaSource(reader messageReader, marker Marker, store ContentWriter, log logger.Logger) *KafkaSource {
	return &KafkaSource{
		reader: reader,
		marker: marker,
		store:  store,
		logger: log.WithField("component", "kafka"),
	}
}

func (k *KafkaSource) Name() string { return "kafka" }

// Run consumes until ctx ends, then closes the reader.
func (k *KafkaSource) Run(ctx context.Context) error {
	defer func() {
		if err := k.reader.Close(); err != nil {
			k.logger.Warnf("Failed to close reader: %v", err)
		}
	}()

	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			k.logger.Errorf("Consumer error: %v", err)
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		if err := k.handle(ctx, msg); err != nil {
			k.logger.Warnf("Skipping record at offset %d: %v", msg.Offset, err)
		}
	}
}

func (k *KafkaSource) handle(ctx context.Context, msg kafka.Message) error {
	topic, payload, err := parseRecord(msg)
	if err != nil {
		return err
	}

	if payload != nil && k.store != nil {
		if err := k.store.PutContent(ctx, topic, payload); err != nil {
			return fmt.Errorf("store content for %s: %w", topic, err)
		}
	}

	k.logger.Debugf("Marking %s changed", topic)
	k.marker.MarkChanged(topic)
	return nil
}

func parseRecord(msg kafka.Message) (string, hub.Payload, error) {
	topic := strings.TrimSpace(string(msg.Key))
	value := bytes.TrimSpace(msg.Value)

	if topic == "" {
		topic = string(value)
		if topic == "" {
			return "", nil, fmt.Errorf("record has neither key nor value")
		}
		return topic, nil, nil
	}

	if len(value) == 0 {
		return topic, nil, nil
	}

	var payload hub.Payload
	if err := json.Unmarshal(value, &payload); err != nil {
		return "", nil, fmt.Errorf("unmarshal content for %s: %w", topic, err)
	}
	return topic, payload, nil
}
