// Package fingerprint implements the HTTP request fingerprint engine.
//
// An Engine turns the raw bytes of one HTTP request into 14 canonical fields:
// URI shape, method and version, header order, popular header values and
// payload features. A Mode then selects, casts and orders those fields into the
// final pipe-delimited fingerprint. Engines are immutable after New and safe for
// concurrent use.
package fingerprint

import (
	"io"
	"log/slog"

	"firestige.xyz/hfinger/internal/tables"
)

// Null is the fingerprint of a request whose header/payload boundary cannot be found.
const Null = "NULL"

// Result is the outcome of fingerprinting one request.
type Result struct {
	Fields Fields
	// Null is set when no boundary was found; Fields is then empty.
	Null        bool
	Boundary    Boundary
	Diagnostics Diagnostics
}

// Engine computes fingerprints.
type Engine struct {
	tables *tables.Tables
	rules  map[string]ValueRule
	logger *slog.Logger
}

// New creates an engine over t. Anomalies are logged at info level to logger;
// a nil logger discards them.
func New(t *tables.Tables, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Engine{
		tables: t,
		rules:  make(map[string]ValueRule),
		logger: logger,
	}
	for _, r := range defaultRules(t) {
		e.rules[r.Header] = r
		logger.Debug("header value rule", "rule", r)
	}
	return e
}

// Logger returns the anomaly logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}

// Tables returns the encoding tables.
func (e *Engine) Tables() *tables.Tables {
	return e.tables
}

// Compute fingerprints raw request bytes.
func (e *Engine) Compute(raw []byte) Result {
	var r Result
	e.ComputeInto(raw, &r)
	return r
}

// ComputeInto fingerprints raw into r, appending to r.Diagnostics. It lets callers
// collect anomalies noted before the engine ran, such as extraction fallbacks.
func (e *Engine) ComputeInto(raw []byte, r *Result) {
	r.Boundary = FindBoundary(raw)
	switch r.Boundary {
	case BoundaryNone:
		r.Diagnostics.Note(e.logger, AnomalyNoBoundary, "no CRLFCRLF or LFLF in request")
		r.Null = true
		r.Fields = Fields{}
		return
	case BoundaryLF:
		r.Diagnostics.Note(e.logger, AnomalyNoCRLF, "no CRLFCRLF in request, switching to LFLF")
	}

	req := Tokenize(raw, r.Boundary)
	if req.NonASCII {
		r.Diagnostics.Note(e.logger, AnomalyNonASCII, "non-ASCII characters in the request headers")
	}

	var f Fields
	uri := e.uriFeatures(req.Lines[0])
	copy(f[FieldURILenLog:FieldVarAvgLenLog+1], uri[:])
	f[FieldMethod], f[FieldVersion] = e.methodVersion(req.Lines[0])
	f[FieldHeaderOrder] = e.headerOrder(req.Lines[1:])
	f[FieldHeaderValues] = e.headerValues(req.Lines[1:], &r.Diagnostics)
	f[FieldPayloadASCII], f[FieldPayloadEntropy], f[FieldPayloadLenLog] = payloadFeatures(req.Payload)

	r.Fields = f
	r.Null = false
}

// Fingerprint computes raw and formats it under mode.
func (e *Engine) Fingerprint(raw []byte, mode Mode) (string, Diagnostics) {
	r := e.Compute(raw)
	return mode.Format(r), r.Diagnostics
}
