// Package fingerprint implements per-record anomaly collection.
package fingerprint

import "log/slog"

// AnomalyKind classifies a non-fatal irregularity found while fingerprinting a record.
type AnomalyKind string

const (
	AnomalyNoCRLF             AnomalyKind = "no_crlfcrlf"
	AnomalyNoBoundary         AnomalyKind = "no_boundary"
	AnomalyNonASCII           AnomalyKind = "non_ascii_headers"
	AnomalyFrameFallback      AnomalyKind = "frame_fallback"
	AnomalyUnknownValue       AnomalyKind = "unknown_header_value"
	AnomalyUnknownContentType AnomalyKind = "unknown_content_type"
	AnomalyNoColon            AnomalyKind = "no_colon"
	AnomalyMissingHTTP        AnomalyKind = "missing_http_layer"
)

// Anomaly is one observed irregularity.
type Anomaly struct {
	Kind   AnomalyKind
	Detail string
}

// Diagnostics collects the anomalies of a single record. The zero value is ready to use.
type Diagnostics struct {
	Anomalies []Anomaly
}

// Note records an anomaly and logs it at info level when logger is non-nil.
func (d *Diagnostics) Note(logger *slog.Logger, kind AnomalyKind, detail string) {
	d.Anomalies = append(d.Anomalies, Anomaly{Kind: kind, Detail: detail})
	if logger != nil {
		logger.Info("anomaly", "kind", string(kind), "detail", detail)
	}
}

// Has reports whether an anomaly of the given kind was recorded.
func (d *Diagnostics) Has(kind AnomalyKind) bool {
	return d.Count(kind) > 0
}

// Count returns the number of anomalies of the given kind.
func (d *Diagnostics) Count(kind AnomalyKind) int {
	n := 0
	for _, a := range d.Anomalies {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Len returns the total number of anomalies.
func (d *Diagnostics) Len() int {
	return len(d.Anomalies)
}
