// Package fingerprint implements the header value encoder.
package fingerprint

import (
	"log/slog"
	"strings"

	"firestige.xyz/hfinger/internal/tables"
)

// Strategy is the fallback contract of a header value encoder.
type Strategy int

const (
	// AbortOnMiss encodes comma-separated values element by element and falls
	// back to a single hash of the whole value when any element is unknown.
	AbortOnMiss Strategy = iota
	// PerElement hashes each unknown element on its own.
	PerElement
	// AlwaysHash hashes the whole value without lookup.
	AlwaysHash
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case AbortOnMiss:
		return "abort-on-miss"
	case PerElement:
		return "per-element"
	case AlwaysHash:
		return "always-hash"
	default:
		return "unknown"
	}
}

// ValueRule binds a header to its encoding strategy.
type ValueRule struct {
	Header   string // lower-case header name
	Strategy Strategy
	Table    map[string]string
	// KeepLeadingSpace disables stripping of the spaces after the colon.
	KeepLeadingSpace bool
	// Normalize rewrites an element before lookup.
	Normalize func(string) string
	// MissKind is the anomaly recorded on a table miss.
	MissKind AnomalyKind
}

// parameterizedCacheDirectives lose their "=value" part before lookup.
var parameterizedCacheDirectives = map[string]struct{}{
	"max-age":   {},
	"max-stale": {},
	"min-fresh": {},
}

// stripCacheParameter reduces "max-age=600" to "max-age"; other values pass through.
func stripCacheParameter(v string) string {
	if directive, _, ok := strings.Cut(v, "="); ok {
		if _, known := parameterizedCacheDirectives[directive]; known {
			return directive
		}
	}
	return v
}

const boundaryKeyword = "boundary="

// defaultRules returns the header bindings in evaluation order.
func defaultRules(t *tables.Tables) []ValueRule {
	generic := func(header string) ValueRule {
		return ValueRule{
			Header:   header,
			Strategy: AbortOnMiss,
			Table:    t.ValueTable(header),
			MissKind: AnomalyUnknownValue,
		}
	}

	cacheControl := generic("cache-control")
	cacheControl.Normalize = stripCacheParameter

	accept := generic("accept")
	accept.Table = t.Accept

	return []ValueRule{
		generic("connection"),
		generic("accept-encoding"),
		generic("content-encoding"),
		cacheControl,
		generic("te"),
		generic("accept-charset"),
		{Header: "content-type", Strategy: PerElement, Table: t.ContentType, MissKind: AnomalyUnknownContentType},
		accept,
		{Header: "accept-language", Strategy: AlwaysHash, KeepLeadingSpace: true},
		{Header: "user-agent", Strategy: AlwaysHash},
	}
}

// headerValues encodes the values of the popular headers found in lines.
func (e *Engine) headerValues(lines []string, d *Diagnostics) string {
	var parts []string
	for _, line := range lines {
		name, value, found := strings.Cut(line, ":")
		if !found {
			d.Note(e.logger, AnomalyNoColon, line)
			continue
		}
		rule, ok := e.rules[strings.ToLower(name)]
		if !ok {
			continue
		}
		if !rule.KeepLeadingSpace {
			value = strings.TrimLeft(value, " ")
		}
		parts = append(parts, e.headerCode(rule.Header)+":"+e.encodeValue(rule, value, line, d))
	}
	return strings.Join(parts, "/")
}

func (e *Engine) headerCode(lower string) string {
	if code, ok := e.tables.HeaderCode(lower); ok {
		return code
	}
	return lower
}

func (e *Engine) encodeValue(rule ValueRule, value, line string, d *Diagnostics) string {
	switch rule.Strategy {
	case AlwaysHash:
		return Hash(value)
	case PerElement:
		return e.encodePerElement(rule, value, line, d)
	default:
		return e.encodeAbortOnMiss(rule, value, line, d)
	}
}

func (e *Engine) encodeAbortOnMiss(rule ValueRule, value, line string, d *Diagnostics) string {
	normalize := rule.Normalize
	if normalize == nil {
		normalize = func(s string) string { return s }
	}

	if !strings.Contains(value, ",") {
		v := normalize(value)
		if code, ok := rule.Table[v]; ok {
			return code
		}
		d.Note(e.logger, rule.MissKind, line)
		return Hash(v)
	}

	if strings.Contains(value, ";q=") {
		return Hash(value)
	}
	elements := strings.Split(value, ",")
	codes := make([]string, 0, len(elements))
	for _, el := range elements {
		el = strings.TrimLeft(el, " \t\n\v\f\r")
		if el == "" {
			return Hash(value)
		}
		code, ok := rule.Table[normalize(el)]
		if !ok {
			d.Note(e.logger, rule.MissKind, line)
			return Hash(value)
		}
		codes = append(codes, code)
	}
	return strings.Join(codes, ",")
}

func (e *Engine) encodePerElement(rule ValueRule, value, line string, d *Diagnostics) string {
	if i := strings.Index(value, boundaryKeyword); i >= 0 {
		return Hash(value[:i+len(boundaryKeyword)])
	}

	elements := strings.Split(value, ",")
	codes := make([]string, 0, len(elements))
	for _, el := range elements {
		el = strings.TrimSpace(el)
		code, ok := rule.Table[el]
		if !ok {
			d.Note(e.logger, rule.MissKind, line)
			code = Hash(el)
		}
		codes = append(codes, code)
	}
	return strings.Join(codes, ",")
}

// Rule returns the value rule bound to a header name, case-insensitively.
func (e *Engine) Rule(header string) (ValueRule, bool) {
	r, ok := e.rules[strings.ToLower(header)]
	return r, ok
}

// LogValue implements slog.LogValuer.
func (r ValueRule) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("header", r.Header),
		slog.String("strategy", r.Strategy.String()),
		slog.Int("entries", len(r.Table)),
	)
}
