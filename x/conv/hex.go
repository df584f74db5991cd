package conv

// Allocation-free hex formatting; no fmt/strconv dependency.

const hexd = "0123456789ABCDEF"

// ByteHex returns b as two uppercase hex digits without 0x.
func ByteHex(b byte) string {
	return string([]byte{hexd[b>>4], hexd[b&0xF]})
}

// U32Hex writes 8-digit uppercase hex without 0x, zero-padded.
func U32Hex(buf []byte, n uint32) []byte {
	if len(buf) < 8 {
		return buf[:0]
	}
	i := len(buf)
	for j := 0; j < 8; j++ {
		i--
		buf[i] = hexd[n&0xF]
		n >>= 4
	}
	return buf[i:]
}
