package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"firestige.xyz/hfinger/internal/core"
)

type fakeConn struct {
	msgs    []*nats.Msg
	err     error
	flushed int
	drained bool
}

func (c *fakeConn) PublishMsg(m *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func (c *fakeConn) FlushWithContext(ctx context.Context) error {
	c.flushed++
	return nil
}

func (c *fakeConn) Drain() error {
	c.drained = true
	return nil
}

func newTestReporter(t *testing.T, config map[string]any) (*NATSReporter, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	r := NewNATSReporter().(*NATSReporter)
	r.connect = func(url string) (publisher, error) { return conn, nil }
	require.NoError(t, r.Init(config))
	require.NoError(t, r.Start(context.Background()))
	return r, conn
}

func testBatch() *core.Batch {
	return &core.Batch{
		RunID:  "run-9",
		Source: "/captures/sample.pcap",
		Mode:   3,
		Records: []core.FingerprintRecord{
			{EpochTime: "1.000000000", IPSrc: "10.0.0.1", IPDst: "10.0.0.2", PortSrc: 50000, PortDst: 80, Fingerprint: "1|1|php||ho"},
		},
	}
}

func TestNATSReporter_Init(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{name: "nil config", config: nil, wantErr: true},
		{name: "missing subject", config: map[string]any{"url": "nats://localhost:4222"}, wantErr: true},
		{name: "empty url", config: map[string]any{"subject": "hfinger", "url": ""}, wantErr: true},
		{name: "invalid encoding", config: map[string]any{"subject": "hfinger", "encoding": "xml"}, wantErr: true},
		{name: "minimal", config: map[string]any{"subject": "hfinger"}, wantErr: false},
		{name: "protobuf", config: map[string]any{"subject": "hfinger", "encoding": "protobuf"}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewNATSReporter().Init(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNATSReporter_Defaults(t *testing.T) {
	r := NewNATSReporter().(*NATSReporter)
	require.NoError(t, r.Init(map[string]any{"subject": "hfinger"}))
	assert.Equal(t, nats.DefaultURL, r.config.URL)
	assert.Equal(t, EncodingJSON, r.config.Encoding)
}

func TestNATSReporter_ReportJSON(t *testing.T) {
	r, conn := newTestReporter(t, map[string]any{"subject": "hfinger.records"})

	require.NoError(t, r.Report(context.Background(), testBatch()))
	require.Len(t, conn.msgs, 1)

	msg := conn.msgs[0]
	assert.Equal(t, "hfinger.records", msg.Subject)
	assert.Equal(t, "run-9", msg.Header.Get(HeaderRunID))
	assert.Equal(t, "/captures/sample.pcap", msg.Header.Get(HeaderSource))
	assert.Equal(t, "3", msg.Header.Get(HeaderMode))

	var got core.FingerprintRecord
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "1|1|php||ho", got.Fingerprint)
	assert.Equal(t, float64(80), got.PortDst)

	require.NoError(t, r.Flush(context.Background()))
	assert.Equal(t, 1, conn.flushed)
}

func TestNATSReporter_ReportProtobuf(t *testing.T) {
	r, conn := newTestReporter(t, map[string]any{"subject": "hfinger", "encoding": "protobuf"})

	require.NoError(t, r.Report(context.Background(), testBatch()))
	require.Len(t, conn.msgs, 1)

	var s structpb.Struct
	require.NoError(t, proto.Unmarshal(conn.msgs[0].Data, &s))
	fields := s.AsMap()
	assert.Equal(t, "1|1|php||ho", fields["fingerprint"])
	assert.Equal(t, float64(50000), fields["port_src"])
	assert.Equal(t, "10.0.0.1", fields["ip_src"])
}

func TestNATSReporter_ReportErrors(t *testing.T) {
	r := NewNATSReporter().(*NATSReporter)
	require.NoError(t, r.Init(map[string]any{"subject": "hfinger"}))
	assert.Error(t, r.Report(context.Background(), testBatch()), "not started")

	r, conn := newTestReporter(t, map[string]any{"subject": "hfinger"})
	assert.Error(t, r.Report(context.Background(), nil))

	conn.err = errors.New("connection closed")
	assert.Error(t, r.Report(context.Background(), testBatch()))
	assert.Equal(t, uint64(1), r.errorCount.Load())
}

func TestNATSReporter_StartError(t *testing.T) {
	r := NewNATSReporter().(*NATSReporter)
	r.connect = func(url string) (publisher, error) { return nil, nats.ErrNoServers }
	require.NoError(t, r.Init(map[string]any{"subject": "hfinger"}))
	assert.ErrorIs(t, r.Start(context.Background()), nats.ErrNoServers)
}

func TestNATSReporter_StopDrains(t *testing.T) {
	r, conn := newTestReporter(t, map[string]any{"subject": "hfinger"})
	require.NoError(t, r.Stop(context.Background()))
	assert.True(t, conn.drained)
	assert.Equal(t, "nats", r.Name())
}
