package console

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"firestige.xyz/hfinger/internal/core"
)

func testBatch() *core.Batch {
	return &core.Batch{
		RunID:  "run-1",
		Source: "/tmp/sample.pcap",
		Mode:   2,
		Records: []core.FingerprintRecord{
			{
				EpochTime:   "1388111476.787707000",
				IPSrc:       "192.168.1.138",
				IPDst:       "174.129.216.24",
				PortSrc:     49209,
				PortDst:     80,
				Fingerprint: "1|1|1|php||GE|1|ho||||",
			},
			{
				EpochTime:   "1388111477.000000000",
				IPSrc:       "192.168.1.138",
				IPDst:       "174.129.216.24",
				PortSrc:     49210,
				PortDst:     80,
				Fingerprint: "NULL",
			},
		},
	}
}

func TestConsoleReporter_Init(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
		wantFmt string
	}{
		{
			name:    "nil config defaults to json",
			config:  nil,
			wantErr: false,
			wantFmt: "json",
		},
		{
			name:    "empty config defaults to json",
			config:  map[string]any{},
			wantErr: false,
			wantFmt: "json",
		},
		{
			name:    "text format",
			config:  map[string]any{"format": "text"},
			wantErr: false,
			wantFmt: "text",
		},
		{
			name:    "invalid format",
			config:  map[string]any{"format": "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewConsoleReporter().(*ConsoleReporter)
			err := r.Init(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("Init() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && r.format != tt.wantFmt {
				t.Errorf("Init() format = %v, want %v", r.format, tt.wantFmt)
			}
		})
	}
}

func TestConsoleReporter_ReportJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter().(*ConsoleReporter)
	r.out = &buf
	if err := r.Init(nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := r.Report(ctx, testBatch()); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not a JSON array: %v (%q)", err, buf.String())
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0]["fingerprint"] != "1|1|1|php||GE|1|ho||||" {
		t.Errorf("fingerprint = %v", got[0]["fingerprint"])
	}
	if got[1]["port_src"] != float64(49210) {
		t.Errorf("port_src = %v, want 49210", got[1]["port_src"])
	}
	if r.reportedCount.Load() != 2 {
		t.Errorf("reportedCount = %d, want 2", r.reportedCount.Load())
	}

	if err := r.Flush(ctx); err != nil {
		t.Errorf("Flush failed: %v", err)
	}
	if err := r.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestConsoleReporter_ReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter().(*ConsoleReporter)
	r.out = &buf

	if err := r.Report(context.Background(), &core.Batch{}); err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("empty batch output = %q, want []", got)
	}
}

func TestConsoleReporter_ReportText(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter().(*ConsoleReporter)
	r.out = &buf
	if err := r.Init(map[string]any{"format": "text"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if err := r.Report(context.Background(), testBatch()); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	want := "[1388111476.787707000] 192.168.1.138:49209 → 174.129.216.24:80 1|1|1|php||GE|1|ho||||"
	if lines[0] != want {
		t.Errorf("line 0 = %q, want %q", lines[0], want)
	}
	if !strings.HasSuffix(lines[1], " NULL") {
		t.Errorf("line 1 = %q, want NULL fingerprint", lines[1])
	}
}

func TestConsoleReporter_ReportNil(t *testing.T) {
	r := NewConsoleReporter()
	if err := r.Report(context.Background(), nil); err == nil {
		t.Error("Report(nil) should return error")
	}
}
