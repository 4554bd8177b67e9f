// Package analyzer implements record sources.
package analyzer

import (
	"context"
	"fmt"

	"firestige.xyz/hfinger/internal/capture"
	"firestige.xyz/hfinger/internal/dissect"
	"firestige.xyz/hfinger/internal/tshark"
)

// Source names.
const (
	SourceTshark = "tshark"
	SourceNative = "native"
)

// Source turns a capture file into dissected records.
type Source interface {
	Name() string
	Records(ctx context.Context, path string) (*capture.Batch, error)
}

// TsharkSource runs tshark and decodes its JSON output.
type TsharkSource struct {
	ts *tshark.Tshark
}

// NewTsharkSource wraps a located tshark.
func NewTsharkSource(ts *tshark.Tshark) *TsharkSource {
	return &TsharkSource{ts: ts}
}

func (s *TsharkSource) Name() string { return SourceTshark }

func (s *TsharkSource) Records(ctx context.Context, path string) (*capture.Batch, error) {
	out, err := s.ts.Run(ctx, path)
	if err != nil {
		return nil, err
	}
	b, err := capture.Decode(out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// NativeSource dissects captures in process.
type NativeSource struct {
	d *dissect.Dissector
}

// NewNativeSource wraps a dissector.
func NewNativeSource(d *dissect.Dissector) *NativeSource {
	return &NativeSource{d: d}
}

func (s *NativeSource) Name() string { return SourceNative }

func (s *NativeSource) Records(ctx context.Context, path string) (*capture.Batch, error) {
	b, _, err := s.d.DissectFile(ctx, path)
	return b, err
}
