// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers add context with fmt.Errorf("...: %w") and match with errors.Is.
var (
	// Dissector errors
	ErrTsharkNotFound   = errors.New("hfinger: no tshark instance found, is it installed")
	ErrTsharkTooOld     = errors.New("hfinger: tshark version is too old, at least 2.2.0 required")
	ErrTsharkFailed     = errors.New("hfinger: tshark failed without usable output")
	ErrMalformedCapture = errors.New("hfinger: malformed dissector output")

	// Input errors
	ErrNotAPcap         = errors.New("hfinger: not a valid pcap file")
	ErrNoPcapsFound     = errors.New("hfinger: no valid pcap files found in the directory")
	ErrPacketTooShort   = errors.New("hfinger: packet too short")
	ErrUnsupportedProto = errors.New("hfinger: unsupported protocol")

	// Fingerprint errors
	ErrBadReportMode = errors.New("hfinger: invalid report mode")

	// Plugin errors
	ErrPluginNotFound   = errors.New("hfinger: plugin not found")
	ErrPluginInitFailed = errors.New("hfinger: plugin init failed")

	// Configuration errors
	ErrConfigInvalid = errors.New("hfinger: invalid configuration")
)
