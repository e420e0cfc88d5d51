// Package kafka publishes station records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/orbs-data-etl/internal/config"
	"github.com/couchcryptid/orbs-data-etl/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes one message per station record.
// It implements pipeline.RecordSink.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (p *Publisher) Name() string { return "kafka" }

// WriteRecords serializes the records and publishes them in a single
// WriteMessages call, keyed by MessageKey.
func (p *Publisher) WriteRecords(ctx context.Context, st domain.SampleType, records []domain.StationRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		rec := records[i]
		rec.SampleType = st
		msg, err := serializeToMessage(rec)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %s records: %w", st, err)
	}
	p.logger.Debug("records published", "sample_type", st, "messages", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// MessageKey returns the message key of a station record, e.g. "Fish-256".
func MessageKey(rec domain.StationRecord) string {
	return string(rec.SampleType) + "-" + strconv.Itoa(rec.ID)
}

// serializeToMessage marshals a StationRecord into a Kafka message.
func serializeToMessage(rec domain.StationRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station record %d: %w", rec.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(rec)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "sample_type", Value: []byte(rec.SampleType)},
			{Key: "org", Value: []byte(rec.Org)},
		},
	}, nil
}
