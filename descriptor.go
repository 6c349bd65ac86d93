package psisi

import "bytes"

// MaxDescriptorPayloadSize is the maximum payload of a binary descriptor,
// as constrained by the 8-bit length field.
const MaxDescriptorPayloadSize = 255

// Descriptor is a raw binary descriptor: one tag byte, one length byte and
// up to 255 payload bytes. An instance whose size is less than 2 bytes is
// the invalid sentinel; operations which would overflow the length field
// leave the descriptor in that state instead of returning an error.
type Descriptor struct {
	data []byte
}

// NewDescriptor builds a descriptor from a tag and a payload. The result is
// invalid if the payload exceeds MaxDescriptorPayloadSize.
func NewDescriptor(tag DescriptorTag, payload []byte) *Descriptor {
	if len(payload) > MaxDescriptorPayloadSize {
		return &Descriptor{}
	}
	data := make([]byte, 2+len(payload))
	data[0] = uint8(tag)
	data[1] = uint8(len(payload))
	copy(data[2:], payload)
	return &Descriptor{data: data}
}

// DescriptorFromBytes builds a descriptor from a full binary area, tag and
// length bytes included. The result is invalid if the length field does not
// match the area size.
func DescriptorFromBytes(data []byte) *Descriptor {
	if len(data) < 2 || len(data) != 2+int(data[1]) {
		return &Descriptor{}
	}
	d := &Descriptor{data: make([]byte, len(data))}
	copy(d.data, data)
	return d
}

// IsValid reports whether the descriptor holds usable binary content.
func (d *Descriptor) IsValid() bool {
	return d != nil && len(d.data) >= 2
}

// Size returns the total binary size, header included, or 0 when invalid.
func (d *Descriptor) Size() int {
	if !d.IsValid() {
		return 0
	}
	return len(d.data)
}

// Content returns the full binary area of the descriptor. The returned
// slice aliases the descriptor content and must not be modified.
func (d *Descriptor) Content() []byte {
	if !d.IsValid() {
		return nil
	}
	return d.data
}

// Tag returns the descriptor tag, or 0 when invalid.
func (d *Descriptor) Tag() DescriptorTag {
	if !d.IsValid() {
		return 0
	}
	return DescriptorTag(d.data[0])
}

// Payload returns the payload area, aliasing the descriptor content.
func (d *Descriptor) Payload() []byte {
	if !d.IsValid() {
		return nil
	}
	return d.data[2:]
}

// PayloadSize returns the payload size in bytes.
func (d *Descriptor) PayloadSize() int {
	if !d.IsValid() {
		return 0
	}
	return len(d.data) - 2
}

// ReplacePayload rewrites the payload and adjusts the length field.
// The descriptor is invalidated if the new payload is too large.
func (d *Descriptor) ReplacePayload(payload []byte) {
	if d == nil {
		return
	}
	if len(payload) > MaxDescriptorPayloadSize || !d.IsValid() {
		d.data = nil
		return
	}
	data := make([]byte, 2+len(payload))
	data[0] = d.data[0]
	data[1] = uint8(len(payload))
	copy(data[2:], payload)
	d.data = data
}

// ResizePayload truncates or zero-extends the payload.
// The descriptor is invalidated if the new size is too large.
func (d *Descriptor) ResizePayload(size int) {
	if d == nil {
		return
	}
	if size > MaxDescriptorPayloadSize || size < 0 || !d.IsValid() {
		d.data = nil
		return
	}
	data := make([]byte, 2+size)
	copy(data, d.data[:2])
	data[1] = uint8(size)
	copy(data[2:], d.data[2:])
	d.data = data
}

// Equal reports full binary content equality.
func (d *Descriptor) Equal(other *Descriptor) bool {
	return d.IsValid() && other.IsValid() && bytes.Equal(d.data, other.data)
}

// XDID is an extended descriptor id: the descriptor tag, plus the extension
// tag from the first payload byte for MPEG and DVB extension descriptors.
type XDID struct {
	Tag          DescriptorTag
	Extension    uint8
	HasExtension bool
}

// XDID computes the extended descriptor id of the descriptor.
func (d *Descriptor) XDID() XDID {
	x := XDID{Tag: d.Tag()}
	if (x.Tag == DescriptorTagMPEGExtension || x.Tag == DescriptorTagDVBExtension) && d.PayloadSize() > 0 {
		x.Extension = d.Payload()[0]
		x.HasExtension = true
	}
	return x
}
