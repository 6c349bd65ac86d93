package psisi

import (
	"encoding/binary"
	"time"
)

// PSIBuffer is a byte buffer with two independent bit-level cursors, one
// for reading and one for writing, used to serialize and deserialize PSI
// and SI structures. Errors are sticky: once a read or write fails, every
// later operation on the same cursor is a no-op returning a zero value, and
// callers check the flag once at the end rather than after every field.
// Not safe for concurrent use.
type PSIBuffer struct {
	data       []byte
	readBit    int
	writeBit   int
	readOnly   bool
	readError  bool
	writeError bool

	// Pending length fields, back-patched by PopState.
	lengths []lengthField
}

type lengthField struct {
	bitPos int
	bits   int
}

// NewPSIBuffer creates a write buffer with the given byte capacity.
func NewPSIBuffer(capacity int) *PSIBuffer {
	return &PSIBuffer{data: make([]byte, capacity)}
}

// NewPSIBufferFromBytes creates a read-only buffer over existing data.
func NewPSIBufferFromBytes(data []byte) *PSIBuffer {
	return &PSIBuffer{data: data, readOnly: true, writeBit: len(data) * 8}
}

// ReadError reports whether a read operation failed.
func (b *PSIBuffer) ReadError() bool { return b.readError }

// WriteError reports whether a write operation failed.
func (b *PSIBuffer) WriteError() bool { return b.writeError }

// Error reports whether any operation failed.
func (b *PSIBuffer) Error() bool { return b.readError || b.writeError }

// SetReadError forces the sticky read error flag.
func (b *PSIBuffer) SetReadError() { b.readError = true }

// SetWriteError forces the sticky write error flag.
func (b *PSIBuffer) SetWriteError() { b.writeError = true }

// CurrentReadBitOffset returns the read cursor position in bits.
func (b *PSIBuffer) CurrentReadBitOffset() int { return b.readBit }

// CurrentWriteBitOffset returns the write cursor position in bits.
func (b *PSIBuffer) CurrentWriteBitOffset() int { return b.writeBit }

// ReadIsByteAligned reports whether the read cursor sits on a byte boundary.
func (b *PSIBuffer) ReadIsByteAligned() bool { return b.readBit%8 == 0 }

// WriteIsByteAligned reports whether the write cursor sits on a byte boundary.
func (b *PSIBuffer) WriteIsByteAligned() bool { return b.writeBit%8 == 0 }

// RemainingReadBytes returns the number of whole bytes left to read.
func (b *PSIBuffer) RemainingReadBytes() int { return (b.writeBit - b.readBit) / 8 }

// RemainingWriteBytes returns the number of whole bytes left to write.
func (b *PSIBuffer) RemainingWriteBytes() int { return (len(b.data)*8 - b.writeBit) / 8 }

// EndOfRead reports whether the read cursor consumed everything written.
func (b *PSIBuffer) EndOfRead() bool { return b.readBit >= b.writeBit }

// Bytes returns the written content. The write cursor must be byte-aligned.
func (b *PSIBuffer) Bytes() []byte {
	if b.writeBit%8 != 0 {
		b.SetWriteError()
	}
	return b.data[:b.writeBit/8]
}

// GetBit reads one bit.
func (b *PSIBuffer) GetBit() uint8 { return uint8(b.GetBits(1)) }

// GetBits reads up to 32 bits, MSB first.
func (b *PSIBuffer) GetBits(n int) uint32 {
	if b.readError || n < 0 || n > 32 || b.readBit+n > b.writeBit {
		b.SetReadError()
		return 0
	}
	var v uint32
	for ; n > 0; n-- {
		v = v<<1 | uint32(b.data[b.readBit>>3]>>(7-b.readBit&7)&1)
		b.readBit++
	}
	return v
}

// SkipBits advances the read cursor.
func (b *PSIBuffer) SkipBits(n int) {
	if b.readError || n < 0 || b.readBit+n > b.writeBit {
		b.SetReadError()
		return
	}
	b.readBit += n
}

// PutBit writes one bit.
func (b *PSIBuffer) PutBit(bit uint8) bool { return b.PutBits(uint32(bit), 1) }

// PutBits writes the low n bits of value, MSB first.
func (b *PSIBuffer) PutBits(value uint32, n int) bool {
	if b.readOnly || b.writeError || n < 0 || n > 32 || b.writeBit+n > len(b.data)*8 {
		b.SetWriteError()
		return false
	}
	for i := n - 1; i >= 0; i-- {
		idx, shift := b.writeBit>>3, 7-b.writeBit&7
		b.data[idx] = b.data[idx]&^(1<<shift) | byte(value>>i&1)<<shift
		b.writeBit++
	}
	return true
}

// GetUInt8 reads one byte-aligned byte.
func (b *PSIBuffer) GetUInt8() uint8 { return uint8(b.getAlignedInt(1)) }

// GetUInt16 reads a byte-aligned 16-bit big endian integer.
func (b *PSIBuffer) GetUInt16() uint16 { return uint16(b.getAlignedInt(2)) }

// GetUInt24 reads a byte-aligned 24-bit big endian integer.
func (b *PSIBuffer) GetUInt24() uint32 { return b.getAlignedInt(3) }

// GetUInt32 reads a byte-aligned 32-bit big endian integer.
func (b *PSIBuffer) GetUInt32() uint32 { return b.getAlignedInt(4) }

func (b *PSIBuffer) getAlignedInt(size int) uint32 {
	data := b.GetBytes(size)
	var v uint32
	for _, c := range data {
		v = v<<8 | uint32(c)
	}
	return v
}

// PutUInt8 writes one byte.
func (b *PSIBuffer) PutUInt8(v uint8) bool { return b.PutBits(uint32(v), 8) }

// PutUInt16 writes a 16-bit big endian integer.
func (b *PSIBuffer) PutUInt16(v uint16) bool { return b.PutBits(uint32(v), 16) }

// PutUInt24 writes a 24-bit big endian integer.
func (b *PSIBuffer) PutUInt24(v uint32) bool { return b.PutBits(v, 24) }

// PutUInt32 writes a 32-bit big endian integer.
func (b *PSIBuffer) PutUInt32(v uint32) bool { return b.PutBits(v, 32) }

// GetBytes reads n bytes. The read cursor must be byte-aligned.
func (b *PSIBuffer) GetBytes(n int) []byte {
	if b.readError || b.readBit%8 != 0 || n < 0 || n > b.RemainingReadBytes() {
		b.SetReadError()
		return nil
	}
	start := b.readBit / 8
	b.readBit += n * 8
	return b.data[start : start+n]
}

// PutBytes writes raw bytes. The write cursor must be byte-aligned.
func (b *PSIBuffer) PutBytes(data []byte) bool {
	if b.readOnly || b.writeError || b.writeBit%8 != 0 || len(data) > b.RemainingWriteBytes() {
		b.SetWriteError()
		return false
	}
	b.writeBit += copy(b.data[b.writeBit/8:], data) * 8
	return true
}

// GetPID reads 3 reserved bits followed by a 13-bit PID. The read cursor
// must be byte-aligned (the reserved bits are skipped) or already past them
// at bit offset 3; any other alignment is an error.
func (b *PSIBuffer) GetPID() PID {
	if b.readError {
		return PIDNull
	}
	if b.readBit%8 == 0 {
		b.SkipBits(3)
	} else if b.readBit%8 != 3 {
		b.SetReadError()
		return PIDNull
	}
	pid := PID(b.GetBits(13))
	if b.readError {
		return PIDNull
	}
	return pid
}

// PutPID writes a 13-bit PID preceded by 3 reserved '1' bits when the write
// cursor is byte-aligned, or the bare 13 bits at bit offset 3; any other
// alignment is an error.
func (b *PSIBuffer) PutPID(pid PID) bool {
	if b.writeBit%8 == 0 {
		return b.PutUInt16(0xe000 | uint16(pid&0x1fff))
	}
	if b.writeBit%8 == 3 {
		return b.PutBits(uint32(pid&0x1fff), 13)
	}
	b.SetWriteError()
	return false
}

// GetLanguageCode reads a 3-byte ISO language or country code. Non-ASCII
// bytes are silently dropped, so the result may be shorter than 3
// characters.
func (b *PSIBuffer) GetLanguageCode() string {
	data := b.GetBytes(3)
	if b.readError {
		return ""
	}
	return languageString(data)
}

// PutLanguageCode writes a 3-character ASCII language or country code. When
// allowEmpty is set, an empty string writes 3 zero bytes. Anything else
// than exactly 3 ASCII characters is an error.
func (b *PSIBuffer) PutLanguageCode(lang string, allowEmpty bool) bool {
	if lang == "" && allowEmpty {
		return b.PutBytes([]byte{0, 0, 0})
	}
	if len(lang) != 3 {
		b.SetWriteError()
		return false
	}
	for i := 0; i < 3; i++ {
		if lang[i] < 0x20 || lang[i] > 0x7f {
			b.SetWriteError()
			return false
		}
	}
	return b.PutBytes([]byte(lang))
}

// GetMJD reads a Modified Julian Date of 2 to 5 bytes. An invalid encoding
// yields the Unix epoch without setting the error flag; broadcast streams
// frequently carry malformed dates.
func (b *PSIBuffer) GetMJD(size int) time.Time {
	if size < 2 || size > 5 {
		b.SetReadError()
		return time.Unix(0, 0).UTC()
	}
	data := b.GetBytes(size)
	if b.readError {
		return time.Unix(0, 0).UTC()
	}
	t, _ := DecodeMJD(data)
	return t
}

// PutMJD writes a Modified Julian Date of 2 to 5 bytes.
func (b *PSIBuffer) PutMJD(t time.Time, size int) bool {
	data, ok := EncodeMJD(t, size)
	if !ok {
		b.SetWriteError()
		return false
	}
	return b.PutBytes(data)
}

// GetMinutesBCD reads a 2-byte BCD duration (hours, minutes).
func (b *PSIBuffer) GetMinutesBCD() time.Duration {
	data := b.GetBytes(2)
	if b.readError {
		return 0
	}
	h, okh := decodeBCDByte(data[0])
	m, okm := decodeBCDByte(data[1])
	if !okh || !okm {
		b.SetReadError()
		return 0
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute
}

// PutMinutesBCD writes a 2-byte BCD duration (hours, minutes).
func (b *PSIBuffer) PutMinutesBCD(d time.Duration) bool {
	minutes := int(d.Minutes())
	if minutes < 0 || minutes >= 100*60 {
		b.SetWriteError()
		return false
	}
	return b.PutBytes([]byte{encodeBCDByte(minutes / 60), encodeBCDByte(minutes % 60)})
}

// GetSecondsBCD reads a 3-byte BCD duration (hours, minutes, seconds).
func (b *PSIBuffer) GetSecondsBCD() time.Duration {
	data := b.GetBytes(3)
	if b.readError {
		return 0
	}
	h, okh := decodeBCDByte(data[0])
	m, okm := decodeBCDByte(data[1])
	s, oks := decodeBCDByte(data[2])
	if !okh || !okm || !oks {
		b.SetReadError()
		return 0
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

// PutSecondsBCD writes a 3-byte BCD duration (hours, minutes, seconds).
func (b *PSIBuffer) PutSecondsBCD(d time.Duration) bool {
	seconds := int(d.Seconds())
	if seconds < 0 || seconds >= 100*3600 {
		b.SetWriteError()
		return false
	}
	return b.PutBytes([]byte{
		encodeBCDByte(seconds / 3600),
		encodeBCDByte(seconds / 60 % 60),
		encodeBCDByte(seconds % 60),
	})
}

// GetVluimsbf5 reads a vluimsbf5 variable-length integer: a run of '1'
// bits terminated by a '0' bit, then 4 value bits per bit of the run plus
// one. Values are limited to 32 bits; a longer encoding sets the read
// error.
func (b *PSIBuffer) GetVluimsbf5() uint32 {
	n := 1
	for !b.readError && b.GetBit() == 1 {
		n++
	}
	if n > 8 {
		b.SetReadError()
	}
	if b.readError {
		return 0
	}
	return b.GetBits(4 * n)
}

// PutVluimsbf5 writes a vluimsbf5 variable-length integer using the
// minimal number of 4-bit fields.
func (b *PSIBuffer) PutVluimsbf5(value uint32) bool {
	n := 1
	for n < 8 && value>>(4*n) != 0 {
		n++
	}
	return b.PutBits(0xffffffff, n-1) && b.PutBit(0) && b.PutBits(value, 4*n)
}

// GetDescriptorList reads length bytes of descriptors into the list, all
// remaining bytes when length is negative. A truncated run sets the read
// error; descriptors parsed before the truncation are kept.
func (b *PSIBuffer) GetDescriptorList(dl *DescriptorList, length int) bool {
	if length < 0 {
		length = b.RemainingReadBytes()
	}
	data := b.GetBytes(length)
	if b.readError {
		return false
	}
	if !dl.AddBytes(data) {
		b.SetReadError()
		return false
	}
	return true
}

// GetDescriptorListWithLength reads a leading length field (see
// GetUnalignedLength) then that many bytes of descriptors.
func (b *PSIBuffer) GetDescriptorListWithLength(dl *DescriptorList, lengthBits int) bool {
	length := b.GetUnalignedLength(lengthBits)
	if b.readError {
		return false
	}
	return b.GetDescriptorList(dl, length)
}

// GetUnalignedLength reads a length field of lengthBits bits whose end
// falls on a byte boundary. When the read cursor is byte-aligned the
// leading reserved bits are skipped first. A length larger than the
// remaining data sets the read error and is capped.
func (b *PSIBuffer) GetUnalignedLength(lengthBits int) int {
	if lengthBits < 1 || lengthBits > 16 {
		lengthBits = 12
	}
	reserved := lengthReservedBits(lengthBits)
	if b.readBit%8 == 0 {
		b.SkipBits(reserved)
	} else if b.readBit%8 != reserved%8 {
		b.SetReadError()
	}
	length := int(b.GetBits(lengthBits))
	if b.readError {
		return 0
	}
	if b.readBit%8 != 0 {
		b.SetReadError()
		return 0
	}
	if remaining := b.RemainingReadBytes(); length > remaining {
		b.SetReadError()
		length = remaining
	}
	return length
}

// PutDescriptorList writes the whole list; not fitting is a write error.
func (b *PSIBuffer) PutDescriptorList(dl *DescriptorList) bool {
	if b.PutPartialDescriptorList(dl, 0) < dl.Count() {
		b.SetWriteError()
	}
	return !b.writeError
}

// PutPartialDescriptorList writes whole descriptors from the start index
// until the first that does not fit, and returns the index of the first
// descriptor not written.
func (b *PSIBuffer) PutPartialDescriptorList(dl *DescriptorList, start int) int {
	start = min(max(start, 0), dl.Count())
	if b.readOnly || b.writeError || b.writeBit%8 != 0 {
		b.SetWriteError()
		return start
	}
	pos := b.writeBit / 8
	written, next := dl.Serialize(b.data[pos:pos+b.RemainingWriteBytes()], start)
	b.writeBit += written * 8
	return next
}

// PutDescriptorListWithLength writes a leading length field then the whole
// list; not fitting is a write error.
func (b *PSIBuffer) PutDescriptorListWithLength(dl *DescriptorList, lengthBits int) bool {
	if b.PutPartialDescriptorListWithLength(dl, 0, lengthBits) < dl.Count() {
		b.SetWriteError()
	}
	return !b.writeError
}

// PutPartialDescriptorListWithLength writes a length field of lengthBits
// bits followed by whole descriptors from the start index, stopping at the
// first that does not fit, and returns the index of the first descriptor
// not written. When the write cursor is byte-aligned the reserved bits of
// the length field are written as '1' first; otherwise the cursor must sit
// exactly past them.
func (b *PSIBuffer) PutPartialDescriptorListWithLength(dl *DescriptorList, start, lengthBits int) int {
	start = min(max(start, 0), dl.Count())
	if lengthBits < 1 || lengthBits > 16 {
		lengthBits = 12
	}
	reserved := lengthReservedBits(lengthBits)
	if b.writeBit%8 == 0 {
		b.PutBits(0xffff, reserved)
	} else if b.writeBit%8 != reserved%8 {
		b.SetWriteError()
	}
	if b.writeError {
		return start
	}
	b.PushWriteSequenceWithLeadingLength(lengthBits)
	next := b.PutPartialDescriptorList(dl, start)
	b.PopState()
	return next
}

// PushWriteSequenceWithLeadingLength writes a placeholder length field of
// lengthBits bits and records its position; the matching PopState patches
// it with the number of bytes written in between. The field must end on a
// byte boundary.
func (b *PSIBuffer) PushWriteSequenceWithLeadingLength(lengthBits int) bool {
	if b.writeError || lengthBits < 1 || lengthBits > 16 || (b.writeBit+lengthBits)%8 != 0 {
		b.SetWriteError()
		return false
	}
	pos := b.writeBit
	if !b.PutBits(0, lengthBits) {
		return false
	}
	b.lengths = append(b.lengths, lengthField{bitPos: pos, bits: lengthBits})
	return true
}

// PopState back-patches the most recent pending length field.
func (b *PSIBuffer) PopState() bool {
	if len(b.lengths) == 0 {
		b.SetWriteError()
		return false
	}
	ls := b.lengths[len(b.lengths)-1]
	b.lengths = b.lengths[:len(b.lengths)-1]
	if b.writeError {
		return false
	}
	length := (b.writeBit - ls.bitPos - ls.bits) / 8
	end := (ls.bitPos + ls.bits) / 8
	mask := uint16(1)<<ls.bits - 1
	if length < 0 || length > int(mask) {
		b.SetWriteError()
		return false
	}
	if end >= 2 {
		cur := binary.BigEndian.Uint16(b.data[end-2 : end])
		binary.BigEndian.PutUint16(b.data[end-2:end], cur&^mask|uint16(length)&mask)
	} else {
		b.data[end-1] = b.data[end-1]&^byte(mask) | byte(length)&byte(mask)
	}
	return true
}

// lengthReservedBits returns the number of reserved bits preceding a
// length field. The field always spans two bytes, so widths of 8 bits or
// fewer still carry a leading reserved byte.
func lengthReservedBits(lengthBits int) int {
	return 16 - lengthBits
}
