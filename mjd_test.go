package psisi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMJDEncodeDecode(t *testing.T) {
	when := time.Date(1993, time.October, 13, 12, 45, 0, 0, time.UTC)
	data, ok := EncodeMJD(when, 5)
	assert.True(t, ok)
	assert.Equal(t, []byte{0xc0, 0x79, 0x12, 0x45, 0x00}, data)

	back, ok := DecodeMJD(data)
	assert.True(t, ok)
	assert.Equal(t, when, back)

	// Date-only form.
	data, ok = EncodeMJD(when, 2)
	assert.True(t, ok)
	assert.Equal(t, []byte{0xc0, 0x79}, data)
	back, ok = DecodeMJD(data)
	assert.True(t, ok)
	assert.Equal(t, time.Date(1993, time.October, 13, 0, 0, 0, 0, time.UTC), back)
}

func TestMJDLeapAndYearBoundaries(t *testing.T) {
	for _, when := range []time.Time{
		time.Date(2000, time.February, 29, 23, 59, 59, 0, time.UTC),
		time.Date(1999, time.December, 31, 0, 0, 1, 0, time.UTC),
		time.Date(2024, time.January, 1, 6, 30, 0, 0, time.UTC),
		time.Date(1982, time.March, 1, 18, 0, 59, 0, time.UTC),
	} {
		data, ok := EncodeMJD(when, 5)
		assert.True(t, ok)
		back, ok := DecodeMJD(data)
		assert.True(t, ok)
		assert.Equal(t, when, back)
	}
}

func TestMJDInvalidEncodings(t *testing.T) {
	epoch := time.Unix(0, 0).UTC()

	back, ok := DecodeMJD([]byte{0xff, 0xff, 0xff, 0xff, 0xff})
	assert.False(t, ok)
	assert.Equal(t, epoch, back)

	// Non-BCD time digits.
	back, ok = DecodeMJD([]byte{0xc0, 0x79, 0x2a, 0x00, 0x00})
	assert.False(t, ok)
	assert.Equal(t, epoch, back)

	// Hours out of range.
	_, ok = DecodeMJD([]byte{0xc0, 0x79, 0x25, 0x00, 0x00})
	assert.False(t, ok)

	_, ok = DecodeMJD([]byte{0xc0})
	assert.False(t, ok)

	_, ok = EncodeMJD(time.Date(1993, time.October, 13, 0, 0, 0, 0, time.UTC), 1)
	assert.False(t, ok)
}
