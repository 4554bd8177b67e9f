// Package fingerprint implements report modes and the report formatter.
package fingerprint

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"firestige.xyz/hfinger/internal/core"
)

// Field indexes the canonical fingerprint fields.
type Field int

const (
	FieldURILenLog Field = iota
	FieldDirCount
	FieldAvgDirLenLog
	FieldExtension
	FieldVarLenLog
	FieldVarCount
	FieldVarAvgLenLog
	FieldMethod
	FieldVersion
	FieldHeaderOrder
	FieldHeaderValues
	FieldPayloadASCII
	FieldPayloadEntropy
	FieldPayloadLenLog

	FieldCount = 14
)

var fieldNames = [FieldCount]string{
	"uri_len_log", "dir_count", "avg_dir_len_log", "extension",
	"var_len_log", "var_count", "var_avg_len_log", "method_code",
	"version_code", "header_order", "header_values", "payload_ascii_flag",
	"payload_entropy", "payload_len_log",
}

// String returns the canonical field name.
func (f Field) String() string {
	if f < 0 || f >= FieldCount {
		return "field(" + strconv.Itoa(int(f)) + ")"
	}
	return fieldNames[f]
}

// Fields holds the 14 canonical fingerprint fields.
type Fields [FieldCount]string

// String joins all fields in canonical order.
func (f Fields) String() string {
	return strings.Join(f[:], "|")
}

// Cast selects how a field is rendered in a report.
type Cast byte

const (
	CastString  Cast = 's'
	CastInteger Cast = 'i'
	CastFloat   Cast = 'f'
)

func (c Cast) valid() bool {
	return c == CastString || c == CastInteger || c == CastFloat
}

// apply renders v according to the cast. Integer casts round half to even.
func (c Cast) apply(v string) string {
	if c != CastInteger || v == "" {
		return v
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	return strconv.FormatInt(int64(math.RoundToEven(f)), 10)
}

// MaskEntry pairs a source field with its cast.
type MaskEntry struct {
	Field Field
	Cast  Cast
}

// Mask is an ordered field selection. Order is output order.
type Mask []MaskEntry

// String renders the mask as "1:s,2:i,...".
func (m Mask) String() string {
	parts := make([]string, len(m))
	for i, e := range m {
		parts[i] = strconv.Itoa(int(e.Field)) + ":" + string(e.Cast)
	}
	return strings.Join(parts, ",")
}

// ParseMask parses the textual form produced by Mask.String.
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty mask", core.ErrBadReportMode)
	}
	var m Mask
	for _, part := range strings.Split(s, ",") {
		idx, cast, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || len(cast) != 1 {
			return nil, fmt.Errorf("%w: bad mask entry %q", core.ErrBadReportMode, part)
		}
		n, err := strconv.Atoi(idx)
		if err != nil || n < 0 || n >= FieldCount {
			return nil, fmt.Errorf("%w: bad field index %q", core.ErrBadReportMode, idx)
		}
		c := Cast(cast[0])
		if !c.valid() {
			return nil, fmt.Errorf("%w: bad cast %q", core.ErrBadReportMode, cast)
		}
		m = append(m, MaskEntry{Field: Field(n), Cast: c})
	}
	return m, nil
}

// Mode is a named report mode.
type Mode struct {
	ID          int
	Description string
	Mask        Mask
}

// Format renders a result under the mode.
func (m Mode) Format(r Result) string {
	if r.Null {
		return Null
	}
	out := make([]string, len(m.Mask))
	for i, e := range m.Mask {
		out[i] = e.Cast.apply(r.Fields[e.Field])
	}
	return strings.Join(out, "|")
}

// ModeSet maps mode identifiers to modes.
type ModeSet map[int]Mode

// DefaultMode is the mode used when none is given.
const DefaultMode = 2

func mustMask(s string) Mask {
	m, err := ParseMask(s)
	if err != nil {
		panic(err)
	}
	return m
}

// DefaultModes returns the five built-in presets.
func DefaultModes() ModeSet {
	return ModeSet{
		0: {
			ID:          0,
			Description: "similar number of collisions and fingerprints as mode 2, but using fewer features",
			Mask:        mustMask("1:s,2:i,3:s,6:f,9:s,10:s,13:f"),
		},
		1: {
			ID:          1,
			Description: "representation of all designed features, but a little more collisions than modes 0, 2, and 4",
			Mask:        mustMask("0:i,1:s,2:i,3:s,4:i,5:s,6:i,7:s,8:s,9:s,10:s,11:s,12:i,13:i"),
		},
		2: {
			ID:          2,
			Description: "optimal (the default mode)",
			Mask:        mustMask("0:i,1:s,2:i,3:s,6:f,7:s,8:s,9:s,10:s,11:s,12:i,13:f"),
		},
		3: {
			ID:          3,
			Description: "the lowest number of generated fingerprints, but the highest number of collisions",
			Mask:        mustMask("0:i,2:i,3:s,6:i,9:s"),
		},
		4: {
			ID:          4,
			Description: "the highest fingerprint entropy, but slightly more fingerprints than modes 0-2",
			Mask:        mustMask("0:f,1:s,2:f,3:s,4:f,6:f,7:s,8:s,9:s,10:s,11:s,12:f,13:f"),
		},
	}
}

// Get returns the mode with the given id.
func (s ModeSet) Get(id int) (Mode, error) {
	m, ok := s[id]
	if !ok {
		return Mode{}, fmt.Errorf("%w: %d is not one of %v", core.ErrBadReportMode, id, s.IDs())
	}
	return m, nil
}

// With returns a copy of s with the given masks added or replaced.
func (s ModeSet) With(masks map[int]Mask) ModeSet {
	out := make(ModeSet, len(s)+len(masks))
	for id, m := range s {
		out[id] = m
	}
	for id, mask := range masks {
		desc := "custom"
		if prev, ok := out[id]; ok {
			desc = prev.Description + " (overridden)"
		}
		out[id] = Mode{ID: id, Description: desc, Mask: mask}
	}
	return out
}

// IDs returns the mode identifiers in ascending order.
func (s ModeSet) IDs() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
