// Package convert holds the pure functions that turn raw register bytes into physical values.
// All multi-byte fields are little-endian; signed fields narrower than their output are
// sign-extended.
package convert

import (
	"encoding/binary"
	"math"
)

// Uint16LE decodes a little-endian unsigned 16 bit field.
func Uint16LE(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

// Int16LE decodes a little-endian two's complement 16 bit field.
func Int16LE(b []byte) int16 {
	return int16(binary.LittleEndian.Uint16(b))
}

// Uint24LE decodes a little-endian unsigned 24 bit field.
func Uint24LE(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// Int24LE decodes a little-endian two's complement 24 bit field, sign-extending it to 32 bits.
func Int24LE(b []byte) int32 {
	return SignExtend(Uint24LE(b), 24)
}

// SignExtend interprets the low `bits` bits of raw as a two's complement value.
func SignExtend(raw uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(raw<<shift) >> shift
}

// Scale converts a raw count to physical units by dividing by the channel's sensitivity.
func Scale(raw float64, countsPerUnit float64) float32 {
	return float32(raw / countsPerUnit)
}

// Interpolate maps raw linearly between two calibration points (x0, y0) and (x1, y1).
func Interpolate(raw, x0, x1, y0, y1 float64) float32 {
	if x1 == x0 {
		return float32(y0)
	}
	return float32(y0 + (raw-x0)*(y1-y0)/(x1-x0))
}

// Float32Size is the byte width of one converted sample.
const Float32Size = 4

// PutFloat32s encodes values into dst as little-endian IEEE-754 floats and returns the number of
// bytes written. dst must hold len(values)*Float32Size bytes.
func PutFloat32s(dst []byte, values []float32) int {
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[i*Float32Size:], math.Float32bits(v))
	}
	return len(values) * Float32Size
}

// Float32s decodes little-endian IEEE-754 floats.
func Float32s(src []byte) []float32 {
	out := make([]float32, len(src)/Float32Size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*Float32Size:]))
	}
	return out
}
