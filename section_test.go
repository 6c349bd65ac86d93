package psisi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32KnownVector(t *testing.T) {
	assert.Equal(t, uint32(0x0376e6e7), CRC32([]byte("123456789")))
	assert.Equal(t, uint32(0xffffffff), CRC32(nil))
}

func TestSectionRoundTrip(t *testing.T) {
	s := &Section{
		TableID:    TableIDSDTActual,
		TableIDExt: 0x1234,
		Version:    3,
		Current:    true,
		Number:     1,
		LastNumber: 2,
		Payload:    []byte{0xaa, 0xbb, 0xcc},
	}
	data, err := s.Serialize()
	assert.NoError(t, err)
	assert.Equal(t, uint8(0x42), data[0])
	// section_length covers the 5 header bytes, the payload and the CRC.
	assert.Equal(t, 3+5+3+4, len(data))

	back, err := ParseSection(data)
	assert.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestSectionBadCRC(t *testing.T) {
	s := &Section{TableID: TableIDPMT, TableIDExt: 1, Current: true, Payload: []byte{0x00}}
	data, err := s.Serialize()
	assert.NoError(t, err)

	data[len(data)-1] ^= 0xff
	_, err = ParseSection(data)
	assert.ErrorContains(t, err, "CRC32")
}

func TestSectionTruncated(t *testing.T) {
	s := &Section{TableID: TableIDPMT, TableIDExt: 1, Payload: []byte{0x00}}
	data, err := s.Serialize()
	assert.NoError(t, err)

	_, err = ParseSection(data[:len(data)-2])
	assert.Error(t, err)
	_, err = ParseSection(data[:2])
	assert.Error(t, err)
}

func TestSectionPayloadTooLarge(t *testing.T) {
	s := &Section{TableID: TableIDPMT, Payload: make([]byte, MaxLongSectionPayload+1)}
	_, err := s.Serialize()
	assert.ErrorContains(t, err, "too large")

	s.Payload = make([]byte, MaxLongSectionPayload)
	_, err = s.Serialize()
	assert.NoError(t, err)
}
