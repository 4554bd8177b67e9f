package fingerprint

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadFeatures(t *testing.T) {
	tests := []struct {
		name                  string
		payload               []byte
		flag, entropy, length string
	}{
		{name: "empty", payload: nil},
		{name: "single value", payload: bytes.Repeat([]byte{'x'}, 10), flag: "A", entropy: "0.0", length: "1.0"},
		{name: "four symbols", payload: []byte("abcd"), flag: "A", entropy: "2.0", length: "0.6"},
		{name: "binary", payload: []byte{0x00, 0xff}, flag: "N", entropy: "1.0", length: "0.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag, entropy, length := payloadFeatures(tt.payload)
			assert.Equal(t, tt.flag, flag)
			assert.Equal(t, tt.entropy, entropy)
			assert.Equal(t, tt.length, length)
		})
	}
}

func TestEntropy(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	assert.InDelta(t, 8.0, Entropy(all), 1e-9)
	assert.Zero(t, Entropy(nil))
	assert.Zero(t, Entropy([]byte("aaaa")))
	assert.False(t, math.Signbit(Entropy([]byte("aaaa"))))
}
