// Package core defines core types with zero external dependencies.
package core

import "time"

// FingerprintRecord is the per-packet result. JSON keys are part of the output contract.
type FingerprintRecord struct {
	EpochTime   string `json:"epoch_time"`
	IPSrc       string `json:"ip_src"`
	IPDst       string `json:"ip_dst"`
	PortSrc     any    `json:"port_src"` // passed through as supplied by the dissector
	PortDst     any    `json:"port_dst"`
	Fingerprint string `json:"fingerprint"`
}

// Batch is the ordered result of fingerprinting one capture file.
type Batch struct {
	RunID     string
	Source    string // capture file path
	Mode      int
	StartedAt time.Time
	Records   []FingerprintRecord
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}
