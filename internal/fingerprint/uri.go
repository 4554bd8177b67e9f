// Package fingerprint implements the URI feature extractor.
package fingerprint

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// uriFields is the number of URI sub-fields.
const uriFields = 7

// uriFeatures returns uri_len_log, dir_count, avg_dir_len_log, extension,
// var_len_log, var_count and var_avg_len_log for a request line.
func (e *Engine) uriFeatures(line string) [uriFields]string {
	var out [uriFields]string

	t := line
	if left, _, found := strings.Cut(line, versionMarker); found {
		t = strings.TrimLeft(left, " ")
	}

	if !strings.Contains(t, "/") || !e.tables.IsMethod(leadingMethod(t)) {
		return out
	}

	target := t
	if i := strings.IndexByte(t, ' '); i >= 0 {
		target = t[i+1:]
	}

	out[0] = formatLog(float64(max(len(target), 1)))
	if len(target) <= 1 {
		return out
	}

	path, query := splitTarget(target)

	segments := strings.Split(path, "/")
	dirCount := len(segments) - 1
	out[1] = strconv.Itoa(dirCount)
	out[2] = "0.0"
	if dirCount > 0 {
		total := 0
		for _, s := range segments[1:] {
			total += len(s)
		}
		if total > 0 {
			out[2] = formatLog(float64(total) / float64(dirCount))
		}
	}
	out[3] = e.extension(path)

	if query != "" {
		values := parseQuery(query)
		out[4] = formatLog(float64(len(query)))
		out[5] = strconv.Itoa(len(values.names))
		out[6] = "0.0"
		if n := len(values.names); n > 0 {
			total := 0
			for _, name := range values.names {
				total += values.first[name]
			}
			out[6] = formatLog(float64(total) / float64(n))
		}
	}
	return out
}

// leadingMethod extracts the method candidate from the first seven characters of t.
func leadingMethod(t string) string {
	head := t
	if len(head) > maxMethodLen {
		head = head[:maxMethodLen]
	}
	head = strings.Trim(strings.ToUpper(head), " ")
	if i := strings.IndexByte(head, ' '); i >= 0 {
		return head[:i]
	}
	return head
}

// extension returns the allow-listed file extension of the last path element.
func (e *Engine) extension(path string) string {
	base := path[strings.LastIndexByte(path, '/')+1:]
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 || strings.Trim(base[:dot], ".") == "" {
		return ""
	}
	ext := base[dot+1:]
	if ext == "" || utf8.RuneCountInString(ext) > 4 {
		return ""
	}
	for _, r := range ext {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return ""
		}
	}
	if !e.tables.HasExtension(ext) {
		return ""
	}
	return ext
}

// splitTarget separates the path and the query of a request target. An absolute
// form target loses its scheme and authority; fragments and path parameters of
// the last segment are dropped.
func splitTarget(target string) (path, query string) {
	rest := strings.TrimLeftFunc(target, func(r rune) bool { return r <= ' ' })
	rest = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, rest)

	if i := strings.IndexByte(rest, ':'); i > 0 && isScheme(rest[:i]) {
		rest = rest[i+1:]
	}
	if strings.HasPrefix(rest, "//") {
		end := strings.IndexAny(rest[2:], "/?#")
		if end < 0 {
			rest = ""
		} else {
			rest = rest[2+end:]
		}
	}
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	path, query, _ = strings.Cut(rest, "?")

	last := strings.LastIndexByte(path, '/') + 1
	if semi := strings.IndexByte(path[last:], ';'); semi >= 0 {
		path = path[:last+semi]
	}
	return path, query
}

func isScheme(s string) bool {
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

type queryValues struct {
	names []string       // distinct names in first-seen order
	first map[string]int // name -> length of its first value
}

// parseQuery parses q with query-string semantics: '&' separated pairs, pairs
// without '=' or with an empty value are skipped, '+' and percent escapes are decoded.
func parseQuery(q string) queryValues {
	v := queryValues{first: make(map[string]int)}
	for _, pair := range strings.Split(q, "&") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || value == "" {
			continue
		}
		name = unquote(name)
		if _, seen := v.first[name]; seen {
			continue
		}
		v.names = append(v.names, name)
		v.first[name] = utf8.RuneCountInString(unquote(value))
	}
	return v
}

// unquote decodes '+' and %XX escapes. Malformed escapes are kept verbatim and
// invalid UTF-8 sequences are replaced with U+FFFD.
func unquote(s string) string {
	if !strings.ContainsAny(s, "+%") {
		return s
	}
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			buf = append(buf, ' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			buf = append(buf, unhex(s[i+1])<<4|unhex(s[i+2]))
			i += 2
		default:
			buf = append(buf, c)
		}
	}
	return strings.ToValidUTF8(string(buf), "�")
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

// formatLog renders log10(v) with one decimal.
func formatLog(v float64) string {
	return formatOneDecimal(math.Log10(v))
}

// formatOneDecimal renders v with exactly one decimal and never as "-0.0".
func formatOneDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	if s == "-0.0" {
		return "0.0"
	}
	return s
}
