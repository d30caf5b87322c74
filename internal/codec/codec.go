// Package codec provides the checksum and sample-format conversions
// shared by every preprocessor and the finalization pipeline.
package codec

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// SHA256Hex returns the lowercase hex-encoded SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// DecodeInt16LE interprets b as little-endian int16 samples and returns
// them normalized to [-1, 1]. len(b) must be a multiple of 2.
func DecodeInt16LE(b []byte) ([]float64, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("codec: int16-LE buffer length %d is not a multiple of 2", len(b))
	}
	out := make([]float64, len(b)/2)
	for i := range out {
		u := binary.LittleEndian.Uint16(b[i*2 : i*2+2])
		out[i] = float64(int16(u)) / 32768.0
	}
	return out, nil
}

// EncodeInt16LE converts normalized [-1, 1] floats back to little-endian
// int16 bytes, saturating at ±32767.
func EncodeInt16LE(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(s * 32768.0)
		if v > 32767 {
			v = 32767
		}
		if v < -32767 {
			v = -32767
		}
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(int16(v)))
	}
	return out
}
