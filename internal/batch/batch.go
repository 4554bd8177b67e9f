// Package batch implements the ordered record worker pool.
package batch

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"firestige.xyz/hfinger/internal/capture"
	"firestige.xyz/hfinger/internal/core"
	"firestige.xyz/hfinger/internal/fingerprint"
	"firestige.xyz/hfinger/internal/metrics"
)

// Summary describes one processed batch.
type Summary struct {
	Records   int
	OK        int
	Null      int
	Empty     int
	Sources   map[capture.Source]int
	Anomalies map[fingerprint.AnomalyKind]int
	Duration  time.Duration
}

// Processor fingerprints the records of a batch on a bounded worker pool.
type Processor struct {
	engine  *fingerprint.Engine
	mode    fingerprint.Mode
	workers int
	logger  *slog.Logger
}

// New creates a processor. workers <= 0 uses GOMAXPROCS.
func New(engine *fingerprint.Engine, mode fingerprint.Mode, workers int, logger *slog.Logger) *Processor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{engine: engine, mode: mode, workers: workers, logger: logger}
}

// Mode returns the report mode.
func (p *Processor) Mode() fingerprint.Mode {
	return p.mode
}

// outcome is the per-record bookkeeping merged after the pool drains.
type outcome struct {
	source capture.Source
	result string
	diag   fingerprint.Diagnostics
}

// Run fingerprints b. The output has one record per input record, in input
// order. A cancelled context stops submission and discards partial results.
func (p *Processor) Run(ctx context.Context, b *capture.Batch) ([]core.FingerprintRecord, Summary, error) {
	start := time.Now()
	n := len(b.Records)
	out := make([]core.FingerprintRecord, n)
	outcomes := make([]outcome, n)
	x := capture.NewExtractor(b.Convention, p.engine.Logger())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range b.Records {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i], outcomes[i] = p.process(x, b.Records[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Summary{}, err
	}

	s := summarize(outcomes)
	s.Duration = time.Since(start)
	metrics.BatchDurationSeconds.Observe(s.Duration.Seconds())
	p.logger.Debug("batch processed",
		"records", s.Records,
		"null", s.Null,
		"empty", s.Empty,
		"duration", s.Duration)
	return out, s, nil
}

func (p *Processor) process(x *capture.Extractor, rec capture.Record) (core.FingerprintRecord, outcome) {
	fr := core.FingerprintRecord{
		EpochTime: rec.EpochTime(),
		IPSrc:     rec.IPSrc(),
		IPDst:     rec.IPDst(),
		PortSrc:   rec.PortSrc(),
		PortDst:   rec.PortDst(),
	}

	var r fingerprint.Result
	raw, src := x.Extract(rec, &r.Diagnostics)
	if src == capture.SourceNone {
		return fr, outcome{source: src, result: metrics.ResultEmpty, diag: r.Diagnostics}
	}

	p.engine.ComputeInto(raw, &r)
	fr.Fingerprint = p.mode.Format(r)

	result := metrics.ResultOK
	if r.Null {
		result = metrics.ResultNull
	}
	return fr, outcome{source: src, result: result, diag: r.Diagnostics}
}

func summarize(outcomes []outcome) Summary {
	s := Summary{
		Records:   len(outcomes),
		Sources:   make(map[capture.Source]int),
		Anomalies: make(map[fingerprint.AnomalyKind]int),
	}
	for _, o := range outcomes {
		switch o.result {
		case metrics.ResultOK:
			s.OK++
		case metrics.ResultNull:
			s.Null++
		case metrics.ResultEmpty:
			s.Empty++
		}
		metrics.FingerprintsTotal.WithLabelValues(o.result).Inc()

		source := string(o.source)
		if o.source == capture.SourceNone {
			source = "none"
		}
		s.Sources[o.source]++
		metrics.RecordsTotal.WithLabelValues(source).Inc()

		for _, a := range o.diag.Anomalies {
			s.Anomalies[a.Kind]++
			metrics.AnomaliesTotal.WithLabelValues(string(a.Kind)).Inc()
		}
	}
	return s
}
