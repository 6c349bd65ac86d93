package psisi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepositoryFactoryResolution(t *testing.T) {
	lcn := NewDescriptor(DescriptorTagLogicalChannelNumber, []byte{0x00, 0x01, 0xfc, 0x07})

	// The private descriptor resolves only under its specifier.
	f := DefaultRepository.FactoryForDescriptor(lcn, PDSEACEM, nil, TableIDNull, StandardsNone)
	assert.NotNil(t, f)
	_, ok := f().(*LogicalChannelNumberDescriptor)
	assert.True(t, ok)
	assert.Nil(t, DefaultRepository.FactoryForDescriptor(lcn, PDSNorDig, nil, TableIDNull, StandardsNone))
	assert.Nil(t, DefaultRepository.FactoryForDescriptor(lcn, 0, nil, TableIDNull, StandardsNone))

	// The table-specific type resolves outside a known table but not in
	// the wrong one.
	name := NewDescriptor(DescriptorTagNetworkName, []byte("net"))
	assert.NotNil(t, DefaultRepository.FactoryForDescriptor(name, 0, nil, TableIDNITActual, StandardsDVB))
	assert.Nil(t, DefaultRepository.FactoryForDescriptor(name, 0, nil, TableIDPMT, StandardsMPEG))
}

func TestRepositoryXMLNames(t *testing.T) {
	assert.NotNil(t, DefaultRepository.FactoryForXML("registration_descriptor"))
	assert.Nil(t, DefaultRepository.FactoryForXML("no_such_descriptor"))
	assert.Equal(t, "stream_identifier_descriptor",
		DefaultRepository.XMLNameForEDID(EDIDStandard(DescriptorTagStreamIdentifier)))
}

func TestDeserializeDescriptorThroughContext(t *testing.T) {
	ctx := &SignalContext{}
	dl := NewDescriptorList(nil)
	dl.Add(pdsDescriptor(PDSEACEM))
	dl.Add(NewDescriptor(DescriptorTagLogicalChannelNumber, []byte{0x00, 0x01, 0xfc, 0x07}))

	dc := NewDescriptorContextForList(ctx, dl, 1)
	td, err := DeserializeDescriptor(ctx, dc, dl.At(1))
	assert.NoError(t, err)
	lcn, ok := td.(*LogicalChannelNumberDescriptor)
	assert.True(t, ok)
	assert.Equal(t, []LogicalChannel{{ServiceID: 1, Visible: true, Number: 7}}, lcn.Channels)

	// Without the specifier in scope, the tag stays unresolved.
	bare := NewDescriptorList(nil)
	bare.Add(NewDescriptor(DescriptorTagLogicalChannelNumber, []byte{0x00, 0x01, 0xfc, 0x07}))
	_, err = DeserializeDescriptor(ctx, NewDescriptorContextForList(ctx, bare, 0), bare.At(0))
	assert.ErrorContains(t, err, "no registered type")
}

func TestTypedDescriptorBinaryForms(t *testing.T) {
	ctx := &SignalContext{}

	reg := &RegistrationDescriptor{FormatIdentifier: REGIDCUEI, AdditionalInfo: []byte{0xff}}
	bin, err := reg.Serialize(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x05, 0x43, 0x55, 0x45, 0x49, 0xff}, bin.Content())

	lcn := &LogicalChannelNumberDescriptor{Channels: []LogicalChannel{{ServiceID: 1, Visible: true, Number: 7}}}
	bin, err = lcn.Serialize(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x83, 0x04, 0x00, 0x01, 0xfc, 0x07}, bin.Content())

	lang := &ISO639LanguageDescriptor{Entries: []LanguageEntry{{Code: "eng", AudioType: 3}}}
	bin, err = lang.Serialize(ctx)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x04, 'e', 'n', 'g', 0x03}, bin.Content())

	var back ISO639LanguageDescriptor
	assert.NoError(t, back.Deserialize(ctx, bin))
	assert.Equal(t, lang.Entries, back.Entries)
	assert.Error(t, back.Deserialize(ctx, NewDescriptor(DescriptorTagNetworkName, nil)))
}
