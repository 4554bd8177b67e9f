package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(FingerprintsTotal.WithLabelValues(ResultNull))
	FingerprintsTotal.WithLabelValues(ResultNull).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FingerprintsTotal.WithLabelValues(ResultNull)))
}

func TestServer(t *testing.T) {
	FilesTotal.WithLabelValues(FileAnalyzed).Inc()

	s := NewServer("127.0.0.1:0", "")
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `hfinger_files_total{status="analyzed"}`)
}

func TestServerStopBeforeStart(t *testing.T) {
	assert.NoError(t, NewServer(":0", "/m").Stop(context.Background()))
}

func TestServerBindError(t *testing.T) {
	s := NewServer("256.0.0.1:1", "")
	assert.Error(t, s.Start(context.Background()))
}
