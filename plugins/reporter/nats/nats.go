// Package nats implements the NATS reporter plugin.
// Publishes one message per fingerprint record, encoded as JSON or protobuf.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cast"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"firestige.xyz/hfinger/internal/core"
	"firestige.xyz/hfinger/pkg/plugin"
)

const (
	EncodingJSON     = "json"
	EncodingProtobuf = "protobuf"
)

// Message header keys.
const (
	HeaderRunID  = "Hfinger-Run-Id"
	HeaderSource = "Hfinger-Source"
	HeaderMode   = "Hfinger-Mode"
)

// publisher is the subset of *nats.Conn used by the reporter.
type publisher interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// Config represents NATS reporter configuration.
type Config struct {
	URL      string `json:"url"`      // optional, default nats://127.0.0.1:4222
	Subject  string `json:"subject"`  // required
	Encoding string `json:"encoding"` // optional: json|protobuf, default json
}

// NATSReporter publishes fingerprint records to a subject.
type NATSReporter struct {
	name   string
	config Config
	conn   publisher
	// connect is replaced in tests.
	connect func(url string) (publisher, error)

	publishedCount atomic.Uint64
	errorCount     atomic.Uint64
}

// NewNATSReporter creates a new NATS reporter.
func NewNATSReporter() plugin.Reporter {
	return &NATSReporter{
		name: "nats",
		connect: func(url string) (publisher, error) {
			return nats.Connect(url, nats.Name("hfinger"))
		},
	}
}

// Name returns the plugin name.
func (r *NATSReporter) Name() string {
	return r.name
}

// Init validates the configuration. The connection is opened by Start.
func (r *NATSReporter) Init(config map[string]any) error {
	if config == nil {
		return fmt.Errorf("nats reporter requires configuration")
	}

	cfg := Config{URL: nats.DefaultURL, Encoding: EncodingJSON}

	subject, err := cast.ToStringE(config["subject"])
	if err != nil || subject == "" {
		return fmt.Errorf("subject is required")
	}
	cfg.Subject = subject

	if v, ok := config["url"]; ok {
		url, err := cast.ToStringE(v)
		if err != nil || url == "" {
			return fmt.Errorf("invalid url: %v", v)
		}
		cfg.URL = url
	}

	if v, ok := config["encoding"]; ok {
		cfg.Encoding = cast.ToString(v)
		if cfg.Encoding != EncodingJSON && cfg.Encoding != EncodingProtobuf {
			return fmt.Errorf("invalid encoding %q, must be json or protobuf", cfg.Encoding)
		}
	}

	r.config = cfg
	return nil
}

// Start connects to the server.
func (r *NATSReporter) Start(ctx context.Context) error {
	conn, err := r.connect(r.config.URL)
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", r.config.URL, err)
	}
	r.conn = conn
	slog.Info("nats reporter started",
		"url", r.config.URL,
		"subject", r.config.Subject,
		"encoding", r.config.Encoding,
	)
	return nil
}

// Stop drains and closes the connection.
func (r *NATSReporter) Stop(ctx context.Context) error {
	if r.conn != nil {
		if err := r.conn.Drain(); err != nil {
			slog.Error("error draining nats connection", "error", err)
			return err
		}
	}
	slog.Info("nats reporter stopped",
		"total_published", r.publishedCount.Load(),
		"total_errors", r.errorCount.Load(),
	)
	return nil
}

// Report publishes every record of the batch.
func (r *NATSReporter) Report(ctx context.Context, batch *core.Batch) error {
	if batch == nil {
		return fmt.Errorf("nil batch")
	}
	if r.conn == nil {
		return fmt.Errorf("nats reporter not started")
	}

	header := nats.Header{}
	header.Set(HeaderRunID, batch.RunID)
	header.Set(HeaderSource, batch.Source)
	header.Set(HeaderMode, strconv.Itoa(batch.Mode))

	for _, rec := range batch.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := r.encode(rec)
		if err != nil {
			r.errorCount.Add(1)
			return fmt.Errorf("encode record failed: %w", err)
		}
		msg := &nats.Msg{Subject: r.config.Subject, Header: header, Data: data}
		if err := r.conn.PublishMsg(msg); err != nil {
			r.errorCount.Add(1)
			return fmt.Errorf("nats publish failed: %w", err)
		}
		r.publishedCount.Add(1)
	}
	return nil
}

// encode renders one record in the configured encoding.
func (r *NATSReporter) encode(rec core.FingerprintRecord) ([]byte, error) {
	if r.config.Encoding == EncodingJSON {
		return json.Marshal(rec)
	}
	s, err := structpb.NewStruct(map[string]any{
		"epoch_time":  rec.EpochTime,
		"ip_src":      rec.IPSrc,
		"ip_dst":      rec.IPDst,
		"port_src":    rec.PortSrc,
		"port_dst":    rec.PortDst,
		"fingerprint": rec.Fingerprint,
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// Flush waits for the server to acknowledge everything published so far.
func (r *NATSReporter) Flush(ctx context.Context) error {
	if r.conn == nil {
		return nil
	}
	return r.conn.FlushWithContext(ctx)
}
