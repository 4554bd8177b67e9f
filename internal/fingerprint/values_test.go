package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/hfinger/internal/tables"
)

func TestHeaderValues(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name    string
		line    string
		want    string
		anomaly AnomalyKind
	}{
		{name: "single known", line: "Connection: keep-alive", want: "co:ke-al"},
		{name: "list with spaces", line: "Accept-Encoding: gzip, deflate", want: "ac-en:gz,de"},
		{name: "list without spaces", line: "Accept-Encoding: gzip,deflate", want: "ac-en:gz,de"},
		{name: "quality values", line: "Accept-Encoding: gzip;q=1.0, deflate;q=0.5", want: "ac-en:" + Hash("gzip;q=1.0, deflate;q=0.5")},
		{name: "unknown element", line: "Accept-Encoding: gzip, foo", want: "ac-en:" + Hash("gzip, foo"), anomaly: AnomalyUnknownValue},
		{name: "trailing comma", line: "Accept-Encoding: gzip,", want: "ac-en:" + Hash("gzip,")},
		{name: "unknown single", line: "Connection: sometimes", want: "co:" + Hash("sometimes"), anomaly: AnomalyUnknownValue},
		{name: "cache parameters", line: "Cache-Control: max-age=600, no-cache", want: "ca-co:ma,nc"},
		{name: "cache bare", line: "Cache-Control: max-age, no-cache", want: "ca-co:ma,nc"},
		{name: "cache single parameter", line: "Cache-Control: max-age=0", want: "ca-co:ma"},
		{name: "multipart", line: "Content-Type: multipart/form-data; boundary=----abc", want: "co-ty:" + Hash("multipart/form-data; boundary=")},
		{name: "content type list", line: "Content-Type: text/plain, foo/bar", want: "co-ty:te-pl," + Hash("foo/bar"), anomaly: AnomalyUnknownContentType},
		{name: "content type single", line: "Content-Type: text/plain", want: "co-ty:te-pl"},
		{name: "accept", line: "Accept: text/html, application/xhtml+xml, */*", want: "ac:te-ht,ap-xh,as-as"},
		{name: "accept language keeps space", line: "Accept-Language: en-US", want: "ac-la:" + Hash(" en-US")},
		{name: "user agent", line: "User-Agent: Mozilla/5.0 (rv:68.0)", want: "us-ag:" + Hash("Mozilla/5.0 (rv:68.0)")},
		{name: "te", line: "TE: trailers", want: "te:tr"},
		{name: "accept charset", line: "Accept-Charset: utf-8, *", want: "ac-ch:ut,as"},
		{name: "content encoding", line: "Content-Encoding: br", want: "co-en:bt"},
		{name: "lower-case name", line: "connection: close", want: "co:cl"},
		{name: "unpopular header", line: "Host: example.com", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Diagnostics
			got := e.headerValues([]string{tt.line}, &d)
			assert.Equal(t, tt.want, got)
			if tt.anomaly != "" {
				assert.True(t, d.Has(tt.anomaly), "missing anomaly %s", tt.anomaly)
			} else {
				assert.Zero(t, d.Len())
			}
		})
	}
}

func TestHeaderValuesJoinsInLineOrder(t *testing.T) {
	e := newTestEngine(t)
	var d Diagnostics

	got := e.headerValues([]string{
		"Host: a",
		"bogus line",
		"Connection: keep-alive",
		"TE: trailers",
	}, &d)

	assert.Equal(t, "co:ke-al/te:tr", got)
	assert.Equal(t, 1, d.Count(AnomalyNoColon))
	assert.Equal(t, "bogus line", d.Anomalies[0].Detail)
}

func TestHeaderValuesValueAfterFirstColon(t *testing.T) {
	e := newTestEngine(t)
	var d Diagnostics
	got := e.headerValues([]string{"User-Agent: a:b:c"}, &d)
	assert.Equal(t, "us-ag:"+Hash("a:b:c"), got)
}

func TestStripCacheParameter(t *testing.T) {
	tests := map[string]string{
		"max-age=600":  "max-age",
		"max-stale=10": "max-stale",
		"min-fresh=1":  "min-fresh",
		"no-cache":     "no-cache",
		"s-maxage=10":  "s-maxage=10",
		"":             "",
	}
	for in, want := range tests {
		assert.Equal(t, want, stripCacheParameter(in), in)
	}
}

func TestRulesMatchPopularHeaders(t *testing.T) {
	e := newTestEngine(t)
	assert.Len(t, e.rules, len(tables.PopularHeaders))
	for _, h := range tables.PopularHeaders {
		_, ok := e.Rule(h)
		assert.True(t, ok, "no rule for %s", h)
	}
}

func TestRules(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		header   string
		strategy Strategy
	}{
		{"Connection", AbortOnMiss},
		{"accept-encoding", AbortOnMiss},
		{"Content-Encoding", AbortOnMiss},
		{"Cache-Control", AbortOnMiss},
		{"TE", AbortOnMiss},
		{"Accept-Charset", AbortOnMiss},
		{"Content-Type", PerElement},
		{"Accept", AbortOnMiss},
		{"Accept-Language", AlwaysHash},
		{"User-Agent", AlwaysHash},
	}
	for _, tt := range tests {
		r, ok := e.Rule(tt.header)
		require.True(t, ok, tt.header)
		assert.Equal(t, tt.strategy, r.Strategy, tt.header)
	}

	r, _ := e.Rule("accept-language")
	assert.True(t, r.KeepLeadingSpace)
	r, _ = e.Rule("cache-control")
	assert.NotNil(t, r.Normalize)

	_, ok := e.Rule("Host")
	assert.False(t, ok)
}

func TestStrategyString(t *testing.T) {
	assert.Equal(t, "abort-on-miss", AbortOnMiss.String())
	assert.Equal(t, "per-element", PerElement.String())
	assert.Equal(t, "always-hash", AlwaysHash.String())
	assert.Equal(t, "unknown", Strategy(9).String())
}
