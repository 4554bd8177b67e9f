package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalCase(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Content-Type", true},
		{"Content-type", false},
		{"content-Type", false},
		{"Host", true},
		{"host", false},
		{"X-Forwarded-For", true},
		{"DNT", true},
		{"TE", true},
		{"te", false},
		{"X-1abc", true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalCase(tt.name))
		})
	}
}

func TestHeaderOrder(t *testing.T) {
	e := newTestEngine(t)

	lines := []string{
		"Host: a",
		"User-Agent: x",
		"accept: */*",
		"X-Custom: 1",
		"Content-type: y",
		"no colon here",
	}
	want := strings.Join([]string{
		"ho",
		"us-ag",
		"!ac",
		Hash("X-Custom"),
		"!co-ty",
		Hash("no colon here"),
	}, ",")

	assert.Equal(t, want, e.headerOrder(lines))
	assert.Equal(t, "", e.headerOrder(nil))
}

func TestHeaderOrderKeepsDuplicates(t *testing.T) {
	e := newTestEngine(t)
	got := e.headerOrder([]string{"Cookie: a", "Host: b", "Cookie: c"})
	assert.Equal(t, "cook,ho,cook", got)
}

func TestHeaderOrderCanonicalProperty(t *testing.T) {
	e := newTestEngine(t)
	for lower, code := range e.tables.Headers {
		canonical := titleCase(lower)
		assert.Equal(t, code, e.headerOrder([]string{canonical + ": v"}), canonical)

		if strings.ContainsAny(lower, "abcdefghijklmnopqrstuvwxyz") {
			assert.Equal(t, "!"+code, e.headerOrder([]string{lower + ": v"}), lower)
		}
	}
}

// titleCase upper-cases the first letter of every hyphen segment.
func titleCase(s string) string {
	segs := strings.Split(s, "-")
	for i, seg := range segs {
		if seg != "" {
			segs[i] = strings.ToUpper(seg[:1]) + seg[1:]
		}
	}
	return strings.Join(segs, "-")
}
