// Package dissect implements a native capture dissector.
//
// It produces the same record shape tshark emits for "-T json -x", in list
// convention, for the TCP frames whose payload starts with a request line. No
// stream reassembly is done, so a request split over segments is seen through
// its first segment only.
package dissect

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/Jeffail/gabs/v2"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/hfinger/internal/capture"
	"firestige.xyz/hfinger/internal/core"
)

// MethodSet reports whether a token is a known request method.
type MethodSet interface {
	IsMethod(m string) bool
}

// maxMethodLen bounds the method token scan.
const maxMethodLen = 7

// Stats counts what the dissector saw.
type Stats struct {
	Packets  int
	Filtered int
	Errors   int
	Requests int
}

// Dissector turns capture files into records.
type Dissector struct {
	filter  *frameFilter
	methods MethodSet
	logger  *slog.Logger
}

// New creates a dissector.
func New(methods MethodSet, logger *slog.Logger) (*Dissector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := newFrameFilter()
	if err != nil {
		return nil, err
	}
	return &Dissector{filter: f, methods: methods, logger: logger}, nil
}

// DissectFile reads path and returns its HTTP request records.
func (d *Dissector) DissectFile(ctx context.Context, path string) (*capture.Batch, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer f.Close()

	b, st, err := d.Dissect(ctx, f)
	if err != nil {
		return nil, st, fmt.Errorf("dissect %s: %w", path, err)
	}
	return b, st, nil
}

// Dissect reads a pcap or pcapng stream.
func (d *Dissector) Dissect(ctx context.Context, r io.Reader) (*capture.Batch, Stats, error) {
	var st Stats
	pr, err := openReader(r)
	if err != nil {
		return nil, st, err
	}
	if lt := pr.LinkType(); lt != layers.LinkTypeEthernet {
		return nil, st, fmt.Errorf("%w: link type %s", core.ErrUnsupportedProto, lt)
	}

	batch := &capture.Batch{Convention: capture.ConventionList}
	for {
		if st.Packets%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, st, err
			}
		}
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// Truncated last packet; keep what was read.
			st.Errors++
			d.logger.Warn("capture cut short", "frame", st.Packets+1, "error", err)
			break
		}
		if err != nil {
			return nil, st, fmt.Errorf("read packet %d: %w", st.Packets+1, err)
		}
		st.Packets++

		if !d.filter.Match(data) {
			st.Filtered++
			continue
		}
		rec, ok, err := d.record(st.Packets, data, ci)
		if err != nil {
			st.Errors++
			d.logger.Debug("skip packet", "frame", st.Packets, "error", err)
			continue
		}
		if !ok {
			st.Filtered++
			continue
		}
		st.Requests++
		batch.Records = append(batch.Records, capture.NewRecord(rec))
	}

	d.logger.Debug("dissected capture",
		"packets", st.Packets,
		"requests", st.Requests,
		"filtered", st.Filtered,
		"errors", st.Errors)
	return batch, st, nil
}

// record slices one frame. ok is false for frames that do not start a request.
func (d *Dissector) record(number int, frame []byte, ci gopacket.CaptureInfo) (*gabs.Container, bool, error) {
	eth, rest, err := decodeEthernet(frame)
	if err != nil {
		return nil, false, err
	}
	ip, rest, err := decodeIP(rest)
	if err != nil {
		return nil, false, err
	}
	if ip.Protocol != protocolTCP {
		return nil, false, core.ErrUnsupportedProto
	}
	tcp, payload, err := decodeTCP(rest)
	if err != nil {
		return nil, false, err
	}
	if !d.startsRequest(payload) {
		return nil, false, nil
	}

	ipOff := eth.Len
	tcpOff := ipOff + ip.Len
	httpOff := tcpOff + tcp.Len

	c := gabs.New()
	set := func(v any, path ...string) {
		// Set only fails when a path element is not an object, which cannot
		// happen on a fresh container.
		_, _ = c.Set(v, path...)
	}
	set(rawField(frame, 0), capture.LayerFrame)
	set(rawField(frame[:ipOff], 0), capture.LayerEth)
	set(rawField(frame[ipOff:tcpOff], ipOff), capture.LayerIP)
	set(rawField(frame[tcpOff:httpOff], tcpOff), capture.LayerTCP)
	set(rawField(payload, httpOff), capture.LayerHTTP)

	set(strconv.Itoa(number), "frame", "frame.number")
	set(fmt.Sprintf("%d.%09d", ci.Timestamp.Unix(), ci.Timestamp.Nanosecond()), "frame", "frame.time_epoch")
	ipLayer := "ip"
	if ip.Version == 6 {
		ipLayer = "ipv6"
	}
	set(ip.SrcIP.String(), ipLayer, ipLayer+".src")
	set(ip.DstIP.String(), ipLayer, ipLayer+".dst")
	set(int(tcp.SrcPort), "tcp", "tcp.srcport")
	set(int(tcp.DstPort), "tcp", "tcp.dstport")
	return c, true, nil
}

// rawField renders bytes the way tshark does for -x: [hex, offset, length, mask, type].
func rawField(b []byte, offset int) []any {
	return []any{hex.EncodeToString(b), offset, len(b), 0, 1}
}

// startsRequest reports whether payload begins with "<METHOD> ".
func (d *Dissector) startsRequest(payload []byte) bool {
	limit := min(len(payload), maxMethodLen+1)
	for i := 0; i < limit; i++ {
		if payload[i] == ' ' {
			return i > 0 && d.methods.IsMethod(string(payload[:i]))
		}
	}
	return false
}
