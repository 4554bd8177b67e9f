// Package tshark implements the tshark dissector wrapper.
package tshark

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/Masterminds/semver/v3"

	"firestige.xyz/hfinger/internal/core"
)

// DefaultFilter selects HTTP requests.
const DefaultFilter = "http.request and tcp and not icmp"

var (
	// MinJSONVersion is the first release with -T json output.
	MinJSONVersion = semver.MustParse("2.2.0")
	// fixedJSONVersion is the first release that closes the JSON array.
	fixedJSONVersion = semver.MustParse("2.2.6")

	zeroVersion = semver.MustParse("0.0.0")
)

// execCommand is replaced in tests.
var execCommand = exec.CommandContext

// Locate returns path when set, else the tshark found in $PATH.
func Locate(path string) (string, error) {
	if path != "" {
		p, err := exec.LookPath(path)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", core.ErrTsharkNotFound, path, err)
		}
		return p, nil
	}
	p, err := exec.LookPath("tshark")
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrTsharkNotFound, err)
	}
	return p, nil
}

// Version runs "tshark -v" and parses its banner.
func Version(ctx context.Context, exe string) (*semver.Version, error) {
	out, err := execCommand(ctx, exe, "-v").Output()
	if err != nil {
		return nil, fmt.Errorf("tshark -v: %w", err)
	}
	return ParseVersion(out), nil
}

// ParseVersion extracts X.Y.Z from a first banner line such as
// "TShark (Wireshark) 3.2.3 (Git v3.2.3 packaged as 3.2.3-1)". Anything else
// reads as 0.0.0.
func ParseVersion(banner []byte) *semver.Version {
	sc := bufio.NewScanner(bytes.NewReader(banner))
	if !sc.Scan() {
		return zeroVersion
	}
	line := sc.Text()
	_, rest, ok := strings.Cut(line, "TShark (Wireshark)")
	if !ok {
		return zeroVersion
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return zeroVersion
	}
	v, err := semver.NewVersion(fields[0])
	if err != nil {
		return zeroVersion
	}
	return v
}

// CheckSupportsJSON fails with ErrTsharkTooOld below minimum, MinJSONVersion when nil.
func CheckSupportsJSON(v, minimum *semver.Version) error {
	if minimum == nil {
		minimum = MinJSONVersion
	}
	if v.LessThan(minimum) {
		return fmt.Errorf("%w: %s < %s", core.ErrTsharkTooOld, v, minimum)
	}
	return nil
}

// NeedsRepair reports whether v leaves the JSON array unterminated.
func NeedsRepair(v *semver.Version) bool {
	return v.LessThan(fixedJSONVersion)
}

// Repair closes the JSON array.
func Repair(out []byte) []byte {
	return append(out, "\n ] \n"...)
}

// Options configures a Tshark.
type Options struct {
	Path       string
	Filter     string
	MinVersion string
}

// Tshark is a located, version-checked tshark binary.
type Tshark struct {
	exe     string
	version *semver.Version
	filter  string
	logger  *slog.Logger
}

// New locates tshark and checks that it can emit JSON.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Tshark, error) {
	if logger == nil {
		logger = slog.Default()
	}
	exe, err := Locate(opts.Path)
	if err != nil {
		return nil, err
	}
	v, err := Version(ctx, exe)
	if err != nil {
		return nil, err
	}

	minimum := MinJSONVersion
	if opts.MinVersion != "" {
		if minimum, err = semver.NewVersion(opts.MinVersion); err != nil {
			return nil, fmt.Errorf("%w: tshark min_version %q: %v", core.ErrConfigInvalid, opts.MinVersion, err)
		}
	}
	if err := CheckSupportsJSON(v, minimum); err != nil {
		return nil, err
	}

	filter := opts.Filter
	if filter == "" {
		filter = DefaultFilter
	}
	logger.Debug("tshark located", "path", exe, "version", v.String(), "repair", NeedsRepair(v))
	return &Tshark{exe: exe, version: v, filter: filter, logger: logger}, nil
}

// Path returns the executable path.
func (t *Tshark) Path() string { return t.exe }

// Version returns the detected version.
func (t *Tshark) Version() *semver.Version { return t.version }

// Run dissects pcap and returns the JSON array of packets. A non-zero exit
// status is tolerated when stdout still holds a JSON array, as tshark exits 2
// on captures that were cut short in the middle of a packet.
func (t *Tshark) Run(ctx context.Context, pcap string) ([]byte, error) {
	cmd := execCommand(ctx, t.exe, "-T", "json", "-x", "-Y"+t.filter, "-r", pcap)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if NeedsRepair(t.version) {
		out = Repair(out)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if !isJSONArray(out) {
			return nil, fmt.Errorf("%w: %s: %v: %s", core.ErrTsharkFailed, pcap, err, msg)
		}
		t.logger.Warn("tshark exited with an error, keeping its output", "pcap", pcap, "error", err, "stderr", msg)
	}
	t.logger.Debug("tshark finished", "pcap", pcap, "bytes", len(out))
	return out, nil
}

func isJSONArray(out []byte) bool {
	trimmed := bytes.TrimSpace(out)
	return len(trimmed) > 0 && trimmed[0] == '[' && json.Valid(trimmed)
}
