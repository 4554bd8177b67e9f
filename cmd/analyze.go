// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/hfinger/internal/analyzer"
	"firestige.xyz/hfinger/internal/batch"
	"firestige.xyz/hfinger/internal/config"
	"firestige.xyz/hfinger/internal/dissect"
	"firestige.xyz/hfinger/internal/fingerprint"
	"firestige.xyz/hfinger/internal/log"
	"firestige.xyz/hfinger/internal/metrics"
	"firestige.xyz/hfinger/internal/tables"
	"firestige.xyz/hfinger/internal/tshark"
	"firestige.xyz/hfinger/pkg/plugin"
	_ "firestige.xyz/hfinger/plugins" // built-in reporters
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Fingerprint the HTTP requests of a capture file or directory",
	Long: `Fingerprint the HTTP requests found in a pcap/pcapng file, or in every
capture of a directory.

Results go to <output-path>/<capture name>.json with -o, to the configured
reporters, or to stdout as a JSON array when neither is given.

Examples:
  hfinger analyze -f traffic.pcap
  hfinger analyze -d captures/ -o results/ -m 4
  hfinger analyze -f traffic.pcap --source native -v
  hfinger analyze -f traffic.pcap --reporter kafka -c hfinger.yml`,
	RunE: runAnalyze,
}

var (
	analyzeFile      string
	analyzeDir       string
	analyzeOutput    string
	analyzeMode      int
	analyzeVerbose   bool
	analyzeLogfile   string
	analyzeSource    string
	analyzeWorkers   int
	analyzeReporters []string
)

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeFile, "file", "f", "", "read a single pcap file")
	f.StringVarP(&analyzeDir, "directory", "d", "", "read all pcap files from the directory")
	f.StringVarP(&analyzeOutput, "output-path", "o", "", "directory for the JSON result files")
	f.IntVarP(&analyzeMode, "mode", "m", fingerprint.DefaultMode, "fingerprint report mode (see 'hfinger modes')")
	f.BoolVarP(&analyzeVerbose, "verbose", "v", false, "log analysis anomalies to stderr")
	f.StringVarP(&analyzeLogfile, "logfile", "l", "", "write analysis anomalies to a file (implies -v)")
	f.StringVar(&analyzeSource, "source", "", "record source: tshark or native")
	f.IntVar(&analyzeWorkers, "workers", 0, "fingerprinting workers per file (0 = GOMAXPROCS)")
	f.StringArrayVar(&analyzeReporters, "reporter", nil, "additional reporter plugin (repeatable)")

	analyzeCmd.MarkFlagsMutuallyExclusive("file", "directory")
	analyzeCmd.MarkFlagsOneRequired("file", "directory")
}

// applyAnalyzeFlags overrides configuration with the flags given on the command line.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.GlobalConfig) error {
	f := cmd.Flags()
	if f.Changed("mode") {
		cfg.Analyzer.Mode = analyzeMode
	}
	if f.Changed("source") {
		cfg.Analyzer.Source = analyzeSource
	}
	if f.Changed("workers") {
		cfg.Analyzer.Workers = analyzeWorkers
	}
	if f.Changed("output-path") {
		cfg.Analyzer.OutputDir = analyzeOutput
	}
	if f.Changed("verbose") {
		cfg.AnomalyLog.Verbose = analyzeVerbose
	}
	if f.Changed("logfile") {
		cfg.AnomalyLog.File = analyzeLogfile
	}
	for _, name := range analyzeReporters {
		cfg.Reporters = append(cfg.Reporters, config.ReporterConfig{Name: name})
	}
	return cfg.ValidateAndApplyDefaults()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyAnalyzeFlags(cmd, cfg); err != nil {
		return err
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	anomalies, closer := log.NewAnomalyLogger(cfg.AnomalyLog.Verbose, cfg.AnomalyLog.File)
	defer closer.Close()

	mode, err := cfg.Analyzer.ModeSet().Get(cfg.Analyzer.Mode)
	if err != nil {
		return err
	}
	tbl, err := tables.LoadDir(cfg.Tables.Dir)
	if err != nil {
		return fmt.Errorf("failed to load encoding tables: %w", err)
	}
	source, err := newSource(ctx, cfg, tbl)
	if err != nil {
		return err
	}

	reporters, err := startReporters(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopReporters(reporters)

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				slog.Warn("metrics server stop failed", "error", err)
			}
		}()
	}

	a := analyzer.New(analyzer.Config{
		Source:    source,
		Processor: batch.New(fingerprint.New(tbl, anomalies), mode, cfg.Analyzer.Workers, slog.Default()),
		Reporters: reporters,
		Logger:    slog.Default(),
	})

	if analyzeFile != "" {
		_, err = a.AnalyzeFile(ctx, analyzeFile)
	} else {
		_, err = a.AnalyzeDir(ctx, analyzeDir)
	}

	var flushErr error
	for _, r := range reporters {
		flushErr = errors.Join(flushErr, r.Flush(ctx))
	}
	return errors.Join(err, flushErr)
}

// newSource builds the configured record source.
func newSource(ctx context.Context, cfg *config.GlobalConfig, tbl *tables.Tables) (analyzer.Source, error) {
	switch cfg.Analyzer.Source {
	case analyzer.SourceNative:
		d, err := dissect.New(tbl, slog.Default())
		if err != nil {
			return nil, err
		}
		return analyzer.NewNativeSource(d), nil
	default:
		ts, err := tshark.New(ctx, tshark.Options{
			Path:       cfg.Tshark.Path,
			Filter:     cfg.Tshark.DisplayFilter,
			MinVersion: cfg.Tshark.MinVersion,
		}, slog.Default())
		if err != nil {
			return nil, err
		}
		return analyzer.NewTsharkSource(ts), nil
	}
}

// reporterConfigs lists the reporters to run: the configured ones, a file
// reporter for the output directory, or stdout JSON when nothing else is set.
func reporterConfigs(cfg *config.GlobalConfig) []config.ReporterConfig {
	rcs := append([]config.ReporterConfig(nil), cfg.Reporters...)
	if cfg.Analyzer.OutputDir != "" {
		rcs = append(rcs, config.ReporterConfig{
			Name:   "file",
			Config: map[string]any{"output_dir": cfg.Analyzer.OutputDir},
		})
	}
	if len(rcs) == 0 {
		rcs = append(rcs, config.ReporterConfig{
			Name:   "console",
			Config: map[string]any{"format": "json"},
		})
	}
	return rcs
}

func startReporters(ctx context.Context, cfg *config.GlobalConfig) ([]plugin.Reporter, error) {
	var started []plugin.Reporter
	for _, rc := range reporterConfigs(cfg) {
		r, err := plugin.NewReporter(rc.Name, rc.Config)
		if err == nil {
			err = r.Start(ctx)
		}
		if err != nil {
			stopReporters(started)
			return nil, fmt.Errorf("reporter %s: %w", rc.Name, err)
		}
		started = append(started, r)
	}
	return started, nil
}

func stopReporters(reporters []plugin.Reporter) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(reporters) - 1; i >= 0; i-- {
		if err := reporters[i].Stop(ctx); err != nil {
			slog.Warn("reporter stop failed", "reporter", reporters[i].Name(), "error", err)
		}
	}
}
