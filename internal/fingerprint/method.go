// Package fingerprint implements the method and version classifier.
package fingerprint

import "strings"

const (
	versionMarker = " HTTP/"
	// maxMethodLen is the length of the longest registered method (CONNECT, OPTIONS).
	maxMethodLen = 7
)

// methodVersion returns the method code and the version code of a request line.
// HTTP/0.9 is assumed when the line carries no version marker.
func (e *Engine) methodVersion(line string) (method, version string) {
	left, right, found := strings.Cut(line, versionMarker)
	if !found {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return "", "9"
		}
		verb := strings.ToUpper(fields[0])
		if len(verb) <= maxMethodLen && e.tables.IsMethod(verb) {
			method = methodCode(verb)
		}
		return method, "9"
	}

	fields := strings.Fields(strings.TrimLeft(left, " "))
	if len(fields) == 0 {
		return "", ""
	}
	verb := strings.ToUpper(fields[0])
	if !e.tables.IsMethod(verb) {
		return "", ""
	}
	if strings.Contains(right, "1.1") {
		return methodCode(verb), "1"
	}
	return methodCode(verb), "0"
}

// methodCode is the first two characters of an upper-cased verb.
func methodCode(verb string) string {
	if len(verb) < 2 {
		return verb
	}
	return verb[:2]
}
