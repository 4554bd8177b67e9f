// Package fingerprint implements the hash fallback.
package fingerprint

import (
	"hash/fnv"
	"strconv"
)

// Hash returns the 32-bit FNV-1a hash of s as lower-case hex with no zero padding.
func Hash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 16)
}
