// Package packf packs float32 data into the little-endian byte layout
// that GPU buffer uploads expect.
package packf

import "math"

// Append appends the little-endian byte representation of vals to dst
// and returns the extended slice.
func Append(dst []byte, vals ...float32) []byte {
	for _, v := range vals {
		bits := math.Float32bits(v)
		dst = append(dst, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
	return dst
}

// Bytes returns the little-endian byte representation of vals.
func Bytes(vals []float32) []byte {
	return Append(make([]byte, 0, len(vals)*4), vals...)
}

// Floats decodes little-endian float32 bytes. Trailing bytes that do not
// form a full float are ignored. Useful for tests inspecting packed
// buffers.
func Floats(data []byte) []float32 {
	n := len(data) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
