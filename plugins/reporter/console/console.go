// Package console implements the console reporter.
// Writes fingerprint records to stdout as a JSON array or as one text line per record.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"firestige.xyz/hfinger/internal/core"
	"firestige.xyz/hfinger/pkg/plugin"
)

// ConsoleReporter prints records to a writer.
type ConsoleReporter struct {
	name          string
	format        string // "json" or "text"
	out           io.Writer
	mu            sync.Mutex
	reportedCount atomic.Uint64
}

// NewConsoleReporter creates a new console reporter.
func NewConsoleReporter() plugin.Reporter {
	return &ConsoleReporter{
		name:   "console",
		format: "json",
		out:    os.Stdout,
	}
}

// Name returns the plugin name.
func (r *ConsoleReporter) Name() string {
	return r.name
}

// Init initializes the reporter with configuration.
func (r *ConsoleReporter) Init(config map[string]any) error {
	if config == nil {
		return nil
	}

	if format, ok := config["format"].(string); ok {
		if format != "json" && format != "text" {
			return fmt.Errorf("invalid format %q, must be json or text", format)
		}
		r.format = format
	}

	return nil
}

// Start starts the reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	slog.Debug("console reporter started", "format", r.format)
	return nil
}

// Stop stops the reporter.
func (r *ConsoleReporter) Stop(ctx context.Context) error {
	slog.Debug("console reporter stopped", "total_reported", r.reportedCount.Load())
	return nil
}

// Report writes the records of a batch.
func (r *ConsoleReporter) Report(ctx context.Context, batch *core.Batch) error {
	if batch == nil {
		return fmt.Errorf("nil batch")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.format == "json" {
		err = r.reportJSON(batch)
	} else {
		err = r.reportText(batch)
	}
	if err != nil {
		return err
	}
	r.reportedCount.Add(uint64(batch.Len()))
	return nil
}

func (r *ConsoleReporter) reportJSON(batch *core.Batch) error {
	records := batch.Records
	if records == nil {
		records = []core.FingerprintRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	_, err = fmt.Fprintln(r.out, string(data))
	return err
}

func (r *ConsoleReporter) reportText(batch *core.Batch) error {
	for _, rec := range batch.Records {
		_, err := fmt.Fprintf(r.out, "[%s] %s:%v → %s:%v %s\n",
			rec.EpochTime,
			rec.IPSrc, rec.PortSrc,
			rec.IPDst, rec.PortDst,
			rec.Fingerprint,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op for console reporter.
func (r *ConsoleReporter) Flush(ctx context.Context) error {
	return nil
}
