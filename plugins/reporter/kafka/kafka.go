// Package kafka implements the Kafka reporter plugin.
// Sends one message per fingerprint record with batching, compression, and retry support.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/spf13/cast"

	"firestige.xyz/hfinger/internal/core"
	"firestige.xyz/hfinger/pkg/plugin"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
)

// Message header keys.
const (
	HeaderRunID  = "hfinger-run-id"
	HeaderSource = "hfinger-source"
	HeaderMode   = "hfinger-mode"
)

// messageWriter is the subset of *kafka.Writer used by the reporter.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaReporter sends fingerprint records to Kafka.
type KafkaReporter struct {
	name   string
	writer messageWriter
	config Config

	// Statistics
	reportedCount atomic.Uint64
	errorCount    atomic.Uint64
}

// Config represents Kafka reporter configuration.
type Config struct {
	Brokers      []string      `json:"brokers"`       // required
	Topic        string        `json:"topic"`         // required
	BatchSize    int           `json:"batch_size"`    // optional, default 100
	BatchTimeout time.Duration `json:"batch_timeout"` // optional, default 100ms
	Compression  string        `json:"compression"`   // optional: none|gzip|snappy|lz4|zstd, default snappy
	MaxAttempts  int           `json:"max_attempts"`  // optional, default 3
}

// NewKafkaReporter creates a new Kafka reporter.
func NewKafkaReporter() plugin.Reporter {
	return &KafkaReporter{
		name: "kafka",
	}
}

// Name returns the plugin name.
func (r *KafkaReporter) Name() string {
	return r.name
}

// Init initializes the reporter with configuration.
func (r *KafkaReporter) Init(config map[string]any) error {
	if config == nil {
		return fmt.Errorf("kafka reporter requires configuration")
	}

	cfg, err := parseConfig(config)
	if err != nil {
		return err
	}
	r.config = cfg

	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // same fingerprint, same partition
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		Async:        false,
	}

	switch cfg.Compression {
	case "none", "":
		writerConfig.CompressionCodec = nil
	case "gzip":
		writerConfig.CompressionCodec = compress.Gzip.Codec()
	case "snappy":
		writerConfig.CompressionCodec = compress.Snappy.Codec()
	case "lz4":
		writerConfig.CompressionCodec = compress.Lz4.Codec()
	case "zstd":
		writerConfig.CompressionCodec = compress.Zstd.Codec()
	default:
		return fmt.Errorf("invalid compression type: %s", cfg.Compression)
	}

	r.writer = kafka.NewWriter(writerConfig)

	return nil
}

// parseConfig coerces the loosely typed reporter map into Config.
func parseConfig(config map[string]any) (Config, error) {
	cfg := Config{
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Compression:  defaultCompression,
		MaxAttempts:  defaultMaxAttempts,
	}

	brokers, ok := config["brokers"].([]any)
	if !ok || len(brokers) == 0 {
		return cfg, fmt.Errorf("brokers is required")
	}
	cfg.Brokers = make([]string, len(brokers))
	for i, b := range brokers {
		broker, ok := b.(string)
		if !ok || broker == "" {
			return cfg, fmt.Errorf("invalid broker type at index %d", i)
		}
		cfg.Brokers[i] = broker
	}

	topic, ok := config["topic"].(string)
	if !ok || topic == "" {
		return cfg, fmt.Errorf("topic is required")
	}
	cfg.Topic = topic

	if v, ok := config["batch_size"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid batch_size: %v", v)
		}
		cfg.BatchSize = n
	}

	if v, ok := config["batch_timeout"]; ok {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid batch_timeout: %w", err)
		}
		cfg.BatchTimeout = d
	}

	if compression, ok := config["compression"].(string); ok {
		cfg.Compression = compression
	}

	if v, ok := config["max_attempts"]; ok {
		n, err := cast.ToIntE(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid max_attempts: %v", v)
		}
		cfg.MaxAttempts = n
	}
	return cfg, nil
}

// Start starts the reporter.
func (r *KafkaReporter) Start(ctx context.Context) error {
	slog.Info("kafka reporter started",
		"brokers", r.config.Brokers,
		"topic", r.config.Topic,
		"batch_size", r.config.BatchSize,
		"batch_timeout", r.config.BatchTimeout,
		"compression", r.config.Compression,
	)
	return nil
}

// Stop flushes pending messages and closes the writer.
func (r *KafkaReporter) Stop(ctx context.Context) error {
	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			slog.Error("error closing kafka writer", "error", err)
			return err
		}
	}

	slog.Info("kafka reporter stopped",
		"total_reported", r.reportedCount.Load(),
		"total_errors", r.errorCount.Load(),
	)
	return nil
}

// Report sends every record of the batch.
func (r *KafkaReporter) Report(ctx context.Context, batch *core.Batch) error {
	if batch == nil {
		return fmt.Errorf("nil batch")
	}
	if batch.Len() == 0 {
		return nil
	}

	msgs, err := r.messages(batch)
	if err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("serialize records failed: %w", err)
	}

	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		r.errorCount.Add(1)
		return fmt.Errorf("kafka write failed: %w", err)
	}

	r.reportedCount.Add(uint64(len(msgs)))
	return nil
}

// messages converts the records of a batch, keyed by fingerprint.
func (r *KafkaReporter) messages(batch *core.Batch) ([]kafka.Message, error) {
	headers := []kafka.Header{
		{Key: HeaderRunID, Value: []byte(batch.RunID)},
		{Key: HeaderSource, Value: []byte(batch.Source)},
		{Key: HeaderMode, Value: []byte(strconv.Itoa(batch.Mode))},
	}

	msgs := make([]kafka.Message, 0, batch.Len())
	for _, rec := range batch.Records {
		value, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(rec.Fingerprint),
			Value:   value,
			Time:    batch.StartedAt,
			Headers: headers,
		})
	}
	return msgs, nil
}

// Flush is a no-op; the writer is synchronous.
func (r *KafkaReporter) Flush(ctx context.Context) error {
	return nil
}
