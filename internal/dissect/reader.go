// Package dissect implements capture file detection and reading.
package dissect

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/hfinger/internal/core"
)

const (
	magicMicros     = 0xa1b2c3d4
	magicNanos      = 0xa1b23c4d
	magicNG         = 0x0a0d0d0a
	magicMicrosSwap = 0xd4c3b2a1
	magicNanosSwap  = 0x4d3cb2a1
)

// Format is a capture file format.
type Format int

const (
	FormatUnknown Format = iota
	FormatPcap
	FormatPcapNG
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatPcap:
		return "pcap"
	case FormatPcapNG:
		return "pcapng"
	default:
		return "unknown"
	}
}

// detect classifies a file by its first four bytes.
func detect(magic []byte) Format {
	if len(magic) < 4 {
		return FormatUnknown
	}
	switch binary.BigEndian.Uint32(magic) {
	case magicMicros, magicNanos, magicMicrosSwap, magicNanosSwap:
		return FormatPcap
	case magicNG:
		return FormatPcapNG
	default:
		return FormatUnknown
	}
}

// IsCapture checks that path is a pcap or pcapng file.
func IsCapture(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return FormatUnknown, fmt.Errorf("%w: %s", core.ErrNotAPcap, path)
	}
	format := detect(magic[:])
	if format == FormatUnknown {
		return FormatUnknown, fmt.Errorf("%w: %s", core.ErrNotAPcap, path)
	}
	return format, nil
}

// packetReader is satisfied by pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// openReader picks the pcap or pcapng reader from the stream magic.
func openReader(r io.Reader) (packetReader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNotAPcap, err)
	}
	switch detect(magic) {
	case FormatPcap:
		return pcapgo.NewReader(br)
	case FormatPcapNG:
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	default:
		return nil, core.ErrNotAPcap
	}
}
