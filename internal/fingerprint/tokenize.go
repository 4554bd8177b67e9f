// Package fingerprint implements the request line tokenizer.
package fingerprint

import (
	"bytes"
	"strings"
)

// Boundary is the marker separating headers from payload.
type Boundary int

const (
	BoundaryNone Boundary = iota
	BoundaryCRLF          // \r\n\r\n
	BoundaryLF            // \n\n
)

var (
	markerCRLF = []byte("\r\n\r\n")
	markerLF   = []byte("\n\n")
)

// String returns the boundary name.
func (b Boundary) String() string {
	switch b {
	case BoundaryCRLF:
		return "crlfcrlf"
	case BoundaryLF:
		return "lflf"
	default:
		return "none"
	}
}

func (b Boundary) marker() []byte {
	if b == BoundaryLF {
		return markerLF
	}
	return markerCRLF
}

func (b Boundary) newline() string {
	if b == BoundaryLF {
		return "\n"
	}
	return "\r\n"
}

// FindBoundary returns CRLFCRLF if present anywhere in raw, else LFLF, else none.
func FindBoundary(raw []byte) Boundary {
	switch {
	case bytes.Contains(raw, markerCRLF):
		return BoundaryCRLF
	case bytes.Contains(raw, markerLF):
		return BoundaryLF
	default:
		return BoundaryNone
	}
}

// Request is a tokenized request.
type Request struct {
	// Lines holds the request line followed by header lines, in capture order.
	Lines []string
	// Payload holds the bytes after the boundary; empty when nothing follows it.
	Payload []byte
	// NonASCII is set when the header part had bytes >= 0x80.
	NonASCII bool
}

// Tokenize splits raw at the first occurrence of b's marker. b must not be BoundaryNone.
func Tokenize(raw []byte, b Boundary) Request {
	head, payload, _ := bytes.Cut(raw, b.marker())
	text, nonASCII := decodeASCII(head)
	return Request{
		Lines:    strings.Split(text, b.newline()),
		Payload:  payload,
		NonASCII: nonASCII,
	}
}

const hexDigits = "0123456789abcdef"

// decodeASCII decodes b as ASCII, rendering each byte >= 0x80 as the visible escape \xNN.
func decodeASCII(b []byte) (string, bool) {
	if isASCII(b) {
		return string(b), false
	}

	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for _, c := range b {
		if c < 0x80 {
			sb.WriteByte(c)
			continue
		}
		sb.WriteString(`\x`)
		sb.WriteByte(hexDigits[c>>4])
		sb.WriteByte(hexDigits[c&0x0f])
	}
	return sb.String(), true
}

// isASCII reports whether every byte of b is below 0x80.
func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
