package psisi

import (
	"encoding/binary"
	"math"
	"time"
)

// Modified Julian Date encoding per ETSI EN 300 468 annex C: a 16-bit day
// count followed by up to 3 BCD bytes for hours, minutes and seconds.

// DecodeMJD converts a 2 to 5 byte encoded date into a UTC time. It returns
// false when the encoding is invalid (day 0xFFFF or non-BCD time digits);
// broadcast streams routinely carry such dates, callers substitute the Unix
// epoch instead of failing.
func DecodeMJD(data []byte) (time.Time, bool) {
	if len(data) < 2 || len(data) > 5 {
		return time.Unix(0, 0).UTC(), false
	}
	day := binary.BigEndian.Uint16(data)
	if day == 0xffff {
		return time.Unix(0, 0).UTC(), false
	}

	var hour, minute, second int
	var ok bool
	if len(data) > 2 {
		if hour, ok = decodeBCDByte(data[2]); !ok || hour > 23 {
			return time.Unix(0, 0).UTC(), false
		}
	}
	if len(data) > 3 {
		if minute, ok = decodeBCDByte(data[3]); !ok || minute > 59 {
			return time.Unix(0, 0).UTC(), false
		}
	}
	if len(data) > 4 {
		if second, ok = decodeBCDByte(data[4]); !ok || second > 59 {
			return time.Unix(0, 0).UTC(), false
		}
	}

	mjd := float64(day)
	yt := math.Floor((mjd - 15078.2) / 365.25)
	mt := math.Floor((mjd - 14956.1 - math.Floor(yt*365.25)) / 30.6001)
	d := int(mjd - 14956 - math.Floor(yt*365.25) - math.Floor(mt*30.6001))
	var k float64
	if mt == 14 || mt == 15 {
		k = 1
	}
	year := int(yt+k) + 1900
	month := time.Month(mt - 1 - k*12)
	return time.Date(year, month, d, hour, minute, second, 0, time.UTC), true
}

// EncodeMJD converts a time into its 2 to 5 byte encoding. Sizes outside
// the 2-5 range or dates before the MJD origin yield false.
func EncodeMJD(t time.Time, size int) ([]byte, bool) {
	if size < 2 || size > 5 {
		return nil, false
	}
	t = t.UTC()
	year := t.Year() - 1900
	month := int(t.Month())
	var l int
	if t.Month() == time.January || t.Month() == time.February {
		l = 1
	}
	mjd := 14956 + t.Day() + int(float64(year-l)*365.25) + int(float64(month+1+l*12)*30.6001)
	if mjd < 0 || mjd > 0xffff {
		return nil, false
	}

	data := make([]byte, size)
	binary.BigEndian.PutUint16(data, uint16(mjd))
	if size > 2 {
		data[2] = encodeBCDByte(t.Hour())
	}
	if size > 3 {
		data[3] = encodeBCDByte(t.Minute())
	}
	if size > 4 {
		data[4] = encodeBCDByte(t.Second())
	}
	return data, true
}

// decodeBCDByte converts one byte of two BCD digits, false if either
// nibble is not a decimal digit.
func decodeBCDByte(b byte) (int, bool) {
	if b>>4 > 9 || b&0xf > 9 {
		return 0, false
	}
	return int(b>>4)*10 + int(b&0xf), true
}

func encodeBCDByte(v int) byte {
	return byte(v/10<<4 | v%10)
}
