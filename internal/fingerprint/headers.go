// Package fingerprint implements the header order encoder.
package fingerprint

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// headerOrder encodes the header name sequence of lines, which excludes the request line.
func (e *Engine) headerOrder(lines []string) string {
	codes := make([]string, 0, len(lines))
	for _, line := range lines {
		name, _, _ := strings.Cut(line, ":")
		code, ok := e.tables.HeaderCode(strings.ToLower(name))
		switch {
		case !ok:
			codes = append(codes, Hash(name))
		case canonicalCase(name):
			codes = append(codes, code)
		default:
			codes = append(codes, "!"+code)
		}
	}
	return strings.Join(codes, ",")
}

// canonicalCase reports whether a header name is written in its conventional case.
// A hyphenated name is canonical when no segment starts with a lower-case letter,
// any other name when it starts with an upper-case letter.
func canonicalCase(name string) bool {
	if strings.Contains(name, "-") {
		for _, seg := range strings.Split(name, "-") {
			if r, _ := utf8.DecodeRuneInString(seg); unicode.IsLower(r) {
				return false
			}
		}
		return true
	}
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}
