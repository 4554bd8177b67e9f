// Package plugin defines plugin interfaces.
package plugin

import (
	"context"

	"firestige.xyz/hfinger/internal/core"
)

// Reporter delivers the fingerprint records of one analysed capture.
type Reporter interface {
	Plugin
	Report(ctx context.Context, batch *core.Batch) error
	Flush(ctx context.Context) error
}

// ReporterFactory creates an uninitialised reporter.
type ReporterFactory func() Reporter
