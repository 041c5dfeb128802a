// Package bytesutil holds the small byte<->integer helpers shared by the
// frame, hpack and h1 packages. Kept free of any protocol semantics so it
// can be imported everywhere without creating cycles.
package bytesutil

// Uint24ToBytes writes the low 24 bits of n into b, big endian.
func Uint24ToBytes(b []byte, n uint32) {
	_ = b[2] // bound check hint
	b[0] = byte(n >> 16)
	b[1] = byte(n >> 8)
	b[2] = byte(n)
}

// BytesToUint24 reads a 24-bit big-endian unsigned integer from b.
func BytesToUint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// Uint32ToBytes writes n into b, big endian.
func Uint32ToBytes(b []byte, n uint32) {
	_ = b[3]
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
}

// BytesToUint32 reads a 32-bit big-endian unsigned integer from b.
func BytesToUint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// BytesToUint32R31 reads a 32-bit big-endian integer from b and masks off
// the reserved high bit, as required for HTTP/2 stream identifiers.
func BytesToUint32R31(b []byte) uint32 {
	return BytesToUint32(b) & (1<<31 - 1)
}

// Resize grows b (reusing spare capacity) so that len(b) == n.
func Resize(b []byte, n int) []byte {
	if cap(b) >= n {
		return b[:n]
	}
	return append(b[:cap(b)], make([]byte, n-cap(b))...)
}

// EqualFold is an ASCII case-insensitive byte comparison, avoiding the
// allocation of strings.EqualFold for hot header-matching paths.
func EqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i]|0x20 != b[i]|0x20 {
			return false
		}
	}
	return true
}
