package psisi

// MPEG-2 CRC32 (ITU-T H.222.0 annex A): polynomial 0x04C11DB7, MSB first,
// initial value 0xFFFFFFFF, no final inversion. hash/crc32 computes
// reflected variants only and cannot express it.

var crc32Table = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		c := uint32(i) << 24
		for b := 0; b < 8; b++ {
			if c&0x80000000 != 0 {
				c = c<<1 ^ 0x04c11db7
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

// CRC32 computes the MPEG-2 CRC32 of data.
func CRC32(data []byte) uint32 {
	crc := uint32(0xffffffff)
	for _, b := range data {
		crc = crc<<8 ^ crc32Table[byte(crc>>24)^b]
	}
	return crc
}
