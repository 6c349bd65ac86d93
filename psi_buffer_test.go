package psisi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBufferBitsRoundTrip(t *testing.T) {
	b := NewPSIBuffer(4)
	assert.True(t, b.PutBits(0x5, 3))
	assert.True(t, b.PutBit(1))
	assert.True(t, b.PutBits(0xabc, 12))
	assert.True(t, b.PutUInt16(0x1234))
	assert.True(t, b.WriteIsByteAligned())

	assert.Equal(t, uint32(0x5), b.GetBits(3))
	assert.Equal(t, uint8(1), b.GetBit())
	assert.Equal(t, uint32(0xabc), b.GetBits(12))
	assert.Equal(t, uint16(0x1234), b.GetUInt16())
	assert.True(t, b.EndOfRead())
	assert.False(t, b.Error())
}

func TestBufferStickyErrors(t *testing.T) {
	b := NewPSIBuffer(1)
	assert.True(t, b.PutUInt8(0xaa))
	assert.False(t, b.PutUInt8(0xbb))
	assert.True(t, b.WriteError())
	// Still failing after the overflow.
	assert.False(t, b.PutBit(0))

	r := NewPSIBufferFromBytes([]byte{0xaa})
	assert.Equal(t, uint8(0xaa), r.GetUInt8())
	assert.Equal(t, uint8(0), r.GetUInt8())
	assert.True(t, r.ReadError())
	assert.Equal(t, uint32(0), r.GetBits(1))
}

func TestBufferReadOnlyRejectsWrites(t *testing.T) {
	r := NewPSIBufferFromBytes([]byte{0x00})
	assert.False(t, r.PutUInt8(1))
	assert.True(t, r.WriteError())
}

func TestBufferPID(t *testing.T) {
	b := NewPSIBuffer(4)
	assert.True(t, b.PutPID(0x1abc))
	assert.Equal(t, []byte{0xfa, 0xbc}, b.Bytes())

	assert.Equal(t, PID(0x1abc), b.GetPID())
	assert.False(t, b.Error())

	// At bit offset 3 the reserved bits are assumed already handled.
	b2 := NewPSIBuffer(2)
	b2.PutBits(0x7, 3)
	assert.True(t, b2.PutPID(0x0123))
	r := NewPSIBufferFromBytes(b2.Bytes())
	r.SkipBits(3)
	assert.Equal(t, PID(0x0123), r.GetPID())

	// Any other alignment is a hard error.
	b3 := NewPSIBuffer(4)
	b3.PutBit(0)
	assert.False(t, b3.PutPID(0x0123))
	r3 := NewPSIBufferFromBytes([]byte{0x00, 0x00})
	r3.SkipBits(1)
	assert.Equal(t, PIDNull, r3.GetPID())
	assert.True(t, r3.ReadError())
}

func TestBufferLanguageCode(t *testing.T) {
	b := NewPSIBuffer(8)
	assert.True(t, b.PutLanguageCode("eng", false))
	assert.Equal(t, "eng", b.GetLanguageCode())

	assert.True(t, b.PutLanguageCode("", true))
	assert.Equal(t, []byte{0, 0, 0}, b.Bytes()[3:6])

	assert.False(t, b.PutLanguageCode("", false))
	assert.True(t, b.WriteError())

	b2 := NewPSIBuffer(8)
	assert.False(t, b2.PutLanguageCode("en", false))
	assert.False(t, b2.PutLanguageCode("e\xffg", false))

	// Non-ASCII bytes are dropped on read.
	r := NewPSIBufferFromBytes([]byte{'f', 0xff, 'r'})
	assert.Equal(t, "fr", r.GetLanguageCode())
	assert.False(t, r.ReadError())
}

func TestBufferMJD(t *testing.T) {
	when := time.Date(1993, time.October, 13, 12, 45, 0, 0, time.UTC)
	b := NewPSIBuffer(5)
	assert.True(t, b.PutMJD(when, 5))
	assert.Equal(t, []byte{0xc0, 0x79, 0x12, 0x45, 0x00}, b.Bytes())
	assert.Equal(t, when, b.GetMJD(5))

	// All-ones dates decode to the epoch without raising an error.
	r := NewPSIBufferFromBytes([]byte{0xff, 0xff, 0xff, 0xff, 0xff})
	assert.Equal(t, time.Unix(0, 0).UTC(), r.GetMJD(5))
	assert.False(t, r.ReadError())
}

func TestBufferBCDDurations(t *testing.T) {
	b := NewPSIBuffer(8)
	assert.True(t, b.PutMinutesBCD(95*time.Minute))
	assert.True(t, b.PutSecondsBCD(2*time.Hour+34*time.Minute+56*time.Second))
	assert.Equal(t, []byte{0x01, 0x35, 0x02, 0x34, 0x56}, b.Bytes())

	assert.Equal(t, 95*time.Minute, b.GetMinutesBCD())
	assert.Equal(t, 2*time.Hour+34*time.Minute+56*time.Second, b.GetSecondsBCD())

	r := NewPSIBufferFromBytes([]byte{0x1a, 0x00})
	r.GetMinutesBCD()
	assert.True(t, r.ReadError())
}

func TestBufferVluimsbf5(t *testing.T) {
	b := NewPSIBuffer(4)
	assert.True(t, b.PutVluimsbf5(0x1234))
	assert.Equal(t, uint32(0x1234), b.GetVluimsbf5())
	assert.False(t, b.Error())

	// Zero uses the minimal single 4-bit field.
	b2 := NewPSIBuffer(4)
	assert.True(t, b2.PutVluimsbf5(0))
	assert.Equal(t, 5, b2.CurrentWriteBitOffset())
	assert.Equal(t, uint32(0), b2.GetVluimsbf5())
	assert.False(t, b2.Error())
}

func TestBufferDescriptorListWithLength(t *testing.T) {
	dl := NewDescriptorList(nil)
	dl.Add(NewDescriptor(DescriptorTagStreamIdentifier, []byte{0x42}))
	dl.Add(NewDescriptor(DescriptorTagNetworkName, []byte("ab")))

	b := NewPSIBuffer(32)
	assert.True(t, b.PutDescriptorListWithLength(dl, 12))
	assert.Equal(t, []byte{0xf0, 0x07, 0x52, 0x01, 0x42, 0x40, 0x02, 'a', 'b'}, b.Bytes())

	out := NewDescriptorList(nil)
	assert.True(t, b.GetDescriptorListWithLength(out, 12))
	assert.True(t, dl.Equal(out))
	assert.False(t, b.Error())
}

func TestBufferDescriptorListWithByteLength(t *testing.T) {
	dl := NewDescriptorList(nil)
	dl.Add(NewDescriptor(DescriptorTagStreamIdentifier, []byte{0x42}))

	// An 8-bit length field still spans two bytes, the first fully reserved.
	b := NewPSIBuffer(16)
	assert.True(t, b.PutDescriptorListWithLength(dl, 8))
	assert.Equal(t, []byte{0xff, 0x03, 0x52, 0x01, 0x42}, b.Bytes())

	data := make([]byte, 16)
	written, _ := dl.LengthSerialize(data, 0, 8)
	assert.Equal(t, 5, written)
	assert.Equal(t, b.Bytes(), data[:5])

	out := NewDescriptorList(nil)
	assert.True(t, b.GetDescriptorListWithLength(out, 8))
	assert.True(t, dl.Equal(out))
	assert.False(t, b.Error())
}

func TestBufferPartialDescriptorList(t *testing.T) {
	dl := NewDescriptorList(nil)
	dl.Add(NewDescriptor(DescriptorTagStreamIdentifier, []byte{0x42}))
	dl.Add(NewDescriptor(DescriptorTagNetworkName, []byte("abcdef")))

	// Room for the length field and the first descriptor only.
	b := NewPSIBuffer(6)
	next := b.PutPartialDescriptorListWithLength(dl, 0, 12)
	assert.Equal(t, 1, next)
	assert.False(t, b.Error())
	assert.Equal(t, []byte{0xf0, 0x03, 0x52, 0x01, 0x42}, b.Bytes())

	// The remainder continues in a second buffer.
	b2 := NewPSIBuffer(16)
	next = b2.PutPartialDescriptorListWithLength(dl, next, 12)
	assert.Equal(t, dl.Count(), next)
	assert.Equal(t, []byte{0xf0, 0x08, 0x40, 0x06, 'a', 'b', 'c', 'd', 'e', 'f'}, b2.Bytes())
}

func TestBufferGetUnalignedLength(t *testing.T) {
	r := NewPSIBufferFromBytes([]byte{0xf0, 0x02, 0xaa, 0xbb})
	assert.Equal(t, 2, r.GetUnalignedLength(12))
	assert.False(t, r.ReadError())

	// A length larger than the remaining data is capped and flagged.
	r2 := NewPSIBufferFromBytes([]byte{0xf0, 0x0a, 0xaa})
	assert.Equal(t, 1, r2.GetUnalignedLength(12))
	assert.True(t, r2.ReadError())
}

func TestBufferTruncatedDescriptorRun(t *testing.T) {
	r := NewPSIBufferFromBytes([]byte{0x52, 0x01, 0x42, 0x40, 0x09, 'a'})
	dl := NewDescriptorList(nil)
	assert.False(t, r.GetDescriptorList(dl, -1))
	assert.True(t, r.ReadError())
	// The descriptor before the truncation is kept.
	assert.Equal(t, 1, dl.Count())
}
