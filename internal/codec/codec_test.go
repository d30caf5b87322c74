package codec

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256HexKnownValue(t *testing.T) {
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", SHA256Hex([]byte("hello")))
}

func TestSHA256HexDeterministic(t *testing.T) {
	b := []byte("a repeatable cardiac recording buffer")
	assert.Equal(t, SHA256Hex(b), SHA256Hex(b))
}

func TestSHA256HexDiffersOnDifferentInput(t *testing.T) {
	assert.NotEqual(t, SHA256Hex([]byte("a")), SHA256Hex([]byte("b")))
}

func TestDecodeInt16LERejectsOddLength(t *testing.T) {
	_, err := DecodeInt16LE([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDecodeInt16LEKnownValues(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint16(raw[0:2], uint16(int16(16384)))
	binary.LittleEndian.PutUint16(raw[2:4], uint16(int16(-16384)))
	binary.LittleEndian.PutUint16(raw[4:6], uint16(int16(0)))
	binary.LittleEndian.PutUint16(raw[6:8], uint16(int16(32767)))

	samples, err := DecodeInt16LE(raw)
	require.NoError(t, err)
	require.Len(t, samples, 4)
	assert.InDelta(t, 0.5, samples[0], 1e-6)
	assert.InDelta(t, -0.5, samples[1], 1e-6)
	assert.InDelta(t, 0.0, samples[2], 1e-6)
	assert.InDelta(t, 0.999969, samples[3], 1e-5)
}

func TestEncodeInt16LESaturates(t *testing.T) {
	out := EncodeInt16LE([]float64{2.0, -2.0})
	samples, err := DecodeInt16LE(out)
	require.NoError(t, err)
	assert.InDelta(t, 32767.0/32768.0, samples[0], 1e-6)
	assert.InDelta(t, -32767.0/32768.0, samples[1], 1e-6)
}
