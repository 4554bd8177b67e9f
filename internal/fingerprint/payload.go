// Package fingerprint implements the payload feature extractor.
package fingerprint

import "math"

// payloadFeatures returns the ASCII flag, entropy and log length of a payload.
// All three are empty when there is no payload.
func payloadFeatures(payload []byte) (flag, entropy, length string) {
	if len(payload) == 0 {
		return "", "", ""
	}
	flag = "N"
	if isASCII(payload) {
		flag = "A"
	}
	return flag, formatOneDecimal(Entropy(payload)), formatLog(float64(len(payload)))
}

// Entropy returns the Shannon entropy of b in bits per byte.
func Entropy(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}
	var counts [256]int
	for _, c := range b {
		counts[c]++
	}
	n := float64(len(b))
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}
