package psisi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriptorConstruction(t *testing.T) {
	d := NewDescriptor(DescriptorTagStreamIdentifier, []byte{0x42})
	assert.True(t, d.IsValid())
	assert.Equal(t, DescriptorTagStreamIdentifier, d.Tag())
	assert.Equal(t, []byte{0x42}, d.Payload())
	assert.Equal(t, 3, d.Size())
	assert.Equal(t, []byte{0x52, 0x01, 0x42}, d.Content())

	assert.False(t, NewDescriptor(DescriptorTagStreamIdentifier, make([]byte, 256)).IsValid())
	assert.True(t, NewDescriptor(DescriptorTagStreamIdentifier, make([]byte, 255)).IsValid())
}

func TestDescriptorFromBytes(t *testing.T) {
	d := DescriptorFromBytes([]byte{0x52, 0x01, 0x42})
	assert.True(t, d.IsValid())
	assert.Equal(t, 1, d.PayloadSize())

	assert.False(t, DescriptorFromBytes([]byte{0x52, 0x02, 0x42}).IsValid())
	assert.False(t, DescriptorFromBytes([]byte{0x52}).IsValid())
	assert.False(t, DescriptorFromBytes(nil).IsValid())
}

func TestDescriptorPayloadEdit(t *testing.T) {
	d := NewDescriptor(DescriptorTagNetworkName, []byte("abc"))
	d.ReplacePayload([]byte("de"))
	assert.Equal(t, []byte{0x40, 0x02, 'd', 'e'}, d.Content())

	d.ResizePayload(4)
	assert.Equal(t, []byte{'d', 'e', 0x00, 0x00}, d.Payload())
	d.ResizePayload(1)
	assert.Equal(t, []byte{'d'}, d.Payload())

	d.ResizePayload(256)
	assert.False(t, d.IsValid())
}

func TestDescriptorEqual(t *testing.T) {
	a := NewDescriptor(DescriptorTagStreamIdentifier, []byte{0x42})
	b := NewDescriptor(DescriptorTagStreamIdentifier, []byte{0x42})
	c := NewDescriptor(DescriptorTagStreamIdentifier, []byte{0x43})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestDescriptorXDID(t *testing.T) {
	plain := NewDescriptor(DescriptorTagStreamIdentifier, []byte{0x42})
	assert.Equal(t, XDID{Tag: DescriptorTagStreamIdentifier}, plain.XDID())

	ext := NewDescriptor(DescriptorTagDVBExtension, []byte{0x10, 0x01})
	assert.Equal(t, XDID{Tag: DescriptorTagDVBExtension, Extension: 0x10, HasExtension: true}, ext.XDID())

	mpegExt := NewDescriptor(DescriptorTagMPEGExtension, []byte{0x03})
	assert.Equal(t, XDID{Tag: DescriptorTagMPEGExtension, Extension: 0x03, HasExtension: true}, mpegExt.XDID())
}
