// Package capture implements the request extractor.
package capture

import (
	"bytes"
	"encoding/hex"
	"io"
	"log/slog"

	"firestige.xyz/hfinger/internal/fingerprint"
)

// Source names the layer a request was taken from.
type Source string

const (
	SourceNone     Source = ""
	SourceSegments Source = "segments"
	SourceFrame    Source = "frame"
	SourceHTTP     Source = "http"
)

// Extractor recovers raw request bytes from records.
type Extractor struct {
	conv   Convention
	logger *slog.Logger
}

// NewExtractor returns an extractor for a batch convention. A nil logger discards.
func NewExtractor(conv Convention, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Extractor{conv: conv, logger: logger}
}

// Extract returns the raw request of rec and the layer it came from. Records
// without an http_raw layer yield SourceNone. Reassembled segments win over
// frame reconstruction, which wins over the dissector-normalized http_raw.
func (x *Extractor) Extract(rec Record, d *fingerprint.Diagnostics) ([]byte, Source) {
	if !rec.Has(LayerHTTP) {
		d.Note(x.logger, fingerprint.AnomalyMissingHTTP, "record has no http_raw layer")
		return nil, SourceNone
	}

	if raw, ok := x.decode(rec, LayerSegments); ok {
		return raw, SourceSegments
	}

	if raw, ok := x.fromFrame(rec); ok {
		if fingerprint.FindBoundary(raw) != fingerprint.BoundaryNone {
			return raw, SourceFrame
		}
	}
	d.Note(x.logger, fingerprint.AnomalyFrameFallback, "frame reconstruction failed, going back to http_raw")

	raw, _ := x.decode(rec, LayerHTTP)
	return raw, SourceHTTP
}

// fromFrame strips the eth, ip and tcp headers from the frame bytes.
func (x *Extractor) fromFrame(rec Record) ([]byte, bool) {
	var parts [4][]byte
	for i, name := range [4]string{LayerFrame, LayerEth, LayerIP, LayerTCP} {
		b, ok := x.decode(rec, name)
		if !ok {
			return nil, false
		}
		parts[i] = b
	}
	frame := parts[0]
	prefix := bytes.Join(parts[1:], nil)

	i := bytes.Index(frame, prefix)
	if i < 0 {
		return nil, false
	}
	return frame[i+len(prefix):], true
}

func (x *Extractor) decode(rec Record, name string) ([]byte, bool) {
	s, ok := rec.Raw(name, x.conv)
	if !ok {
		return nil, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		x.logger.Debug("undecodable raw layer", "layer", name, "error", err)
		return nil, false
	}
	return b, true
}
