// Package file implements the file reporter.
// Writes the records of each capture to <output_dir>/<basename>.json.
package file

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cast"

	"firestige.xyz/hfinger/internal/analyzer"
	"firestige.xyz/hfinger/internal/core"
	"firestige.xyz/hfinger/pkg/plugin"
)

// FileReporter writes one JSON file per capture.
type FileReporter struct {
	name      string
	outputDir string
	written   []string
}

// NewFileReporter creates a new file reporter.
func NewFileReporter() plugin.Reporter {
	return &FileReporter{name: "file"}
}

// Name returns the plugin name.
func (r *FileReporter) Name() string {
	return r.name
}

// Init requires output_dir.
func (r *FileReporter) Init(config map[string]any) error {
	dir, err := cast.ToStringE(config["output_dir"])
	if err != nil {
		return fmt.Errorf("invalid output_dir: %w", err)
	}
	if dir == "" {
		return fmt.Errorf("output_dir is required")
	}
	r.outputDir = dir
	return nil
}

// Start starts the reporter.
func (r *FileReporter) Start(ctx context.Context) error {
	slog.Debug("file reporter started", "output_dir", r.outputDir)
	return nil
}

// Stop stops the reporter.
func (r *FileReporter) Stop(ctx context.Context) error {
	slog.Debug("file reporter stopped", "files_written", len(r.written))
	return nil
}

// Report writes the batch next to the other results.
func (r *FileReporter) Report(ctx context.Context, batch *core.Batch) error {
	if batch == nil {
		return fmt.Errorf("nil batch")
	}
	path, err := analyzer.WriteResults(r.outputDir, batch.Source, batch.Records)
	if err != nil {
		return err
	}
	r.written = append(r.written, path)
	slog.Info("results written", "run_id", batch.RunID, "path", path, "records", batch.Len())
	return nil
}

// Flush is a no-op; every Report completes its file.
func (r *FileReporter) Flush(ctx context.Context) error {
	return nil
}
