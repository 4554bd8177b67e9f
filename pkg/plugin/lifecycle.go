// Package plugin defines the reporter plugin lifecycle.
package plugin

import "context"

// Plugin is the lifecycle every reporter goes through: created by its
// registered factory, configured once with Init from its `reporters[].config`
// map, started before the first capture is analysed and stopped after the
// last batch has been reported and flushed.
type Plugin interface {
	// Name is the registry name, e.g. "kafka".
	Name() string
	// Init validates and applies the reporter configuration. No I/O.
	Init(cfg map[string]any) error
	// Start opens connections. Called once, before any Report.
	Start(ctx context.Context) error
	// Stop releases connections after the final Flush.
	Stop(ctx context.Context) error
}
