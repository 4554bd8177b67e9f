// Package analyzer implements capture file orchestration.
//
// An Analyzer checks each input, obtains its records from a Source, fingerprints
// them on a batch.Processor and hands the result to the configured reporters.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"firestige.xyz/hfinger/internal/batch"
	"firestige.xyz/hfinger/internal/core"
	"firestige.xyz/hfinger/internal/dissect"
	"firestige.xyz/hfinger/internal/fingerprint"
	"firestige.xyz/hfinger/internal/metrics"
	"firestige.xyz/hfinger/internal/tables"
	"firestige.xyz/hfinger/internal/tshark"
	"firestige.xyz/hfinger/pkg/plugin"
)

// FileResult is the outcome of one capture file.
type FileResult struct {
	Path    string
	RunID   string
	Records []core.FingerprintRecord
	Summary batch.Summary
}

// Config wires an Analyzer.
type Config struct {
	Source    Source
	Processor *batch.Processor
	Reporters []plugin.Reporter
	Logger    *slog.Logger
}

// Analyzer analyses capture files.
type Analyzer struct {
	source    Source
	processor *batch.Processor
	reporters []plugin.Reporter
	logger    *slog.Logger
}

// New creates an analyzer.
func New(cfg Config) *Analyzer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		source:    cfg.Source,
		processor: cfg.Processor,
		reporters: cfg.Reporters,
		logger:    logger,
	}
}

// AnalyzeFile fingerprints one capture file.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*FileResult, error) {
	if _, err := dissect.IsCapture(path); err != nil {
		metrics.FilesTotal.WithLabelValues(metrics.FileFailed).Inc()
		return nil, err
	}
	return a.analyze(ctx, path)
}

func (a *Analyzer) analyze(ctx context.Context, path string) (*FileResult, error) {
	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID, "file", path)
	logger.Info("analyzing file", "source", a.source.Name())
	started := time.Now()

	b, err := a.source.Records(ctx, path)
	if err != nil {
		metrics.FilesTotal.WithLabelValues(metrics.FileFailed).Inc()
		return nil, err
	}
	records, summary, err := a.processor.Run(ctx, b)
	if err != nil {
		metrics.FilesTotal.WithLabelValues(metrics.FileFailed).Inc()
		return nil, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	metrics.FilesTotal.WithLabelValues(metrics.FileAnalyzed).Inc()
	logger.Info("file analyzed",
		"records", summary.Records,
		"null", summary.Null,
		"empty", summary.Empty,
		"duration", summary.Duration)

	res := &FileResult{Path: path, RunID: runID, Records: records, Summary: summary}
	if err := a.report(ctx, &core.Batch{
		RunID:     runID,
		Source:    path,
		Mode:      a.processor.Mode().ID,
		StartedAt: started,
		Records:   records,
	}); err != nil {
		return res, err
	}
	return res, nil
}

// report delivers a batch to every reporter. Reporter failures are counted and
// joined so one failing sink does not starve the others.
func (a *Analyzer) report(ctx context.Context, b *core.Batch) error {
	var errs []error
	for _, r := range a.reporters {
		if err := r.Report(ctx, b); err != nil {
			metrics.ReporterErrorsTotal.WithLabelValues(r.Name()).Inc()
			a.logger.Error("reporter failed", "reporter", r.Name(), "run_id", b.RunID, "error", err)
			errs = append(errs, fmt.Errorf("reporter %s: %w", r.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// AnalyzeDir fingerprints every capture directly inside dir, in name order.
// Sub-directories and files that are not captures are skipped.
func (a *Analyzer) AnalyzeDir(ctx context.Context, dir string) ([]*FileResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var results []*FileResult
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, err := dissect.IsCapture(path); err != nil {
			if errors.Is(err, core.ErrNotAPcap) {
				metrics.FilesTotal.WithLabelValues(metrics.FileSkipped).Inc()
				a.logger.Debug("skipping non-capture file", "file", path)
				continue
			}
			return results, err
		}
		res, err := a.analyze(ctx, path)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			return results, err
		}
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w in %s", core.ErrNoPcapsFound, dir)
	}
	return results, nil
}

// OutputPath is <outDir>/<basename(input)>.json.
func OutputPath(outDir, inputPath string) string {
	return filepath.Join(outDir, filepath.Base(inputPath)+".json")
}

// WriteResults writes records as a JSON array to OutputPath and returns the path.
func WriteResults(outDir, inputPath string, records []core.FingerprintRecord) (string, error) {
	if records == nil {
		records = []core.FingerprintRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := OutputPath(outDir, inputPath)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}
	return path, nil
}

// Analyze fingerprints one capture with tshark, the embedded tables and the
// given report mode. Anomalies are not logged.
func Analyze(ctx context.Context, path string, mode int) ([]core.FingerprintRecord, error) {
	m, err := fingerprint.DefaultModes().Get(mode)
	if err != nil {
		return nil, err
	}
	tbl, err := tables.Default()
	if err != nil {
		return nil, err
	}
	ts, err := tshark.New(ctx, tshark.Options{}, nil)
	if err != nil {
		return nil, err
	}

	a := New(Config{
		Source:    NewTsharkSource(ts),
		Processor: batch.New(fingerprint.New(tbl, nil), m, 0, nil),
	})
	res, err := a.AnalyzeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}
