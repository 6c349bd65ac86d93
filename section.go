package psisi

import "fmt"

// Long section layout limits (ISO/IEC 13818-1, 2.4.4).
const (
	maxSectionLength      = 0xffd
	longSectionHeaderSize = 5
	sectionCRCSize        = 4
	MaxLongSectionPayload = maxSectionLength - longSectionHeaderSize - sectionCRCSize
	minLongSectionLength  = longSectionHeaderSize + sectionCRCSize
	sectionPreambleSize   = 3
)

// Section is one PSI/SI long section: the syntax-indicator header fields
// plus the table body between the header and the CRC32.
type Section struct {
	TableID    TableID
	TableIDExt uint16
	Version    uint8
	Current    bool
	Number     uint8
	LastNumber uint8
	Payload    []byte
}

// Serialize emits the full on-wire section, CRC32 included.
func (s *Section) Serialize() ([]byte, error) {
	length := longSectionHeaderSize + len(s.Payload) + sectionCRCSize
	if length > maxSectionLength {
		return nil, fmt.Errorf("psisi: section payload too large (%d bytes)", len(s.Payload))
	}

	b := NewPSIBuffer(sectionPreambleSize + length)
	b.PutUInt8(uint8(s.TableID))
	b.PutBit(1) // section_syntax_indicator
	b.PutBit(0)
	b.PutBits(0x3, 2)
	b.PutBits(uint32(length), 12)
	b.PutUInt16(s.TableIDExt)
	b.PutBits(0x3, 2)
	b.PutBits(uint32(s.Version&0x1f), 5)
	b.PutBit(b2u(s.Current))
	b.PutUInt8(s.Number)
	b.PutUInt8(s.LastNumber)
	b.PutBytes(s.Payload)
	if b.Error() {
		return nil, fmt.Errorf("psisi: serializing section %#x failed", uint8(s.TableID))
	}
	b.PutUInt32(CRC32(b.Bytes()))
	return b.Bytes(), nil
}

// ParseSection parses a full long section and verifies its CRC32.
func ParseSection(data []byte) (*Section, error) {
	b := NewPSIBufferFromBytes(data)
	s := &Section{TableID: TableID(b.GetUInt8())}
	syntax := b.GetBit() == 1
	b.SkipBits(3)
	length := int(b.GetBits(12))
	if b.ReadError() {
		return nil, fmt.Errorf("psisi: truncated section header")
	}
	if !syntax {
		return nil, fmt.Errorf("psisi: short section syntax is not supported")
	}
	if length < minLongSectionLength || length > b.RemainingReadBytes() {
		return nil, fmt.Errorf("psisi: invalid section length %d", length)
	}

	s.TableIDExt = b.GetUInt16()
	b.SkipBits(2)
	s.Version = uint8(b.GetBits(5))
	s.Current = b.GetBit() == 1
	s.Number = b.GetUInt8()
	s.LastNumber = b.GetUInt8()
	s.Payload = append([]byte(nil), b.GetBytes(length-minLongSectionLength)...)
	crc := b.GetUInt32()
	if b.ReadError() {
		return nil, fmt.Errorf("psisi: truncated section body")
	}
	if expected := CRC32(data[:sectionPreambleSize+length-sectionCRCSize]); crc != expected {
		return nil, fmt.Errorf("psisi: wrong CRC32 %#08x in section %#x, expected %#08x", crc, uint8(s.TableID), expected)
	}
	return s, nil
}
