package psisi

import (
	"fmt"
)

func init() {
	RegisterDescriptor(EDIDStandard(DescriptorTagRegistration), "registration_descriptor",
		func() TypedDescriptor { return &RegistrationDescriptor{} })
	RegisterDescriptor(EDIDStandard(DescriptorTagPrivateDataSpecifier), "private_data_specifier_descriptor",
		func() TypedDescriptor { return &PrivateDataSpecifierDescriptor{} })
	RegisterDescriptor(EDIDStandard(DescriptorTagISO639Language), "ISO_639_language_descriptor",
		func() TypedDescriptor { return &ISO639LanguageDescriptor{} })
	RegisterDescriptor(EDIDStandard(DescriptorTagStreamIdentifier), "stream_identifier_descriptor",
		func() TypedDescriptor { return &StreamIdentifierDescriptor{} })
	RegisterDescriptor(EDIDTableSpecific(DescriptorTagNetworkName, StandardsDVB, TableIDNITActual, TableIDNITOther),
		"network_name_descriptor",
		func() TypedDescriptor { return &NetworkNameDescriptor{} })
	RegisterDescriptor(EDIDPrivateDVB(DescriptorTagLogicalChannelNumber, PDSEACEM),
		"logical_channel_number_descriptor",
		func() TypedDescriptor { return &LogicalChannelNumberDescriptor{} })
}

// serializeDescriptorPayload runs a payload writer over a scratch buffer
// and wraps the result into a binary descriptor.
func serializeDescriptorPayload(tag DescriptorTag, fill func(b *PSIBuffer)) (*Descriptor, error) {
	b := NewPSIBuffer(MaxDescriptorPayloadSize)
	fill(b)
	if b.Error() {
		return nil, fmt.Errorf("psisi: serializing descriptor %#x failed", uint8(tag))
	}
	d := NewDescriptor(tag, b.Bytes())
	if !d.IsValid() {
		return nil, fmt.Errorf("psisi: descriptor %#x payload too large", uint8(tag))
	}
	return d, nil
}

func payloadReader(tag DescriptorTag, bin *Descriptor) (*PSIBuffer, error) {
	if !bin.IsValid() || bin.Tag() != tag {
		return nil, fmt.Errorf("psisi: not a valid descriptor %#x", uint8(tag))
	}
	return NewPSIBufferFromBytes(bin.Payload()), nil
}

// RegistrationDescriptor carries an MPEG format identifier, opening the
// private MPEG semantics of the following descriptors (ISO/IEC 13818-1,
// 2.6.8).
type RegistrationDescriptor struct {
	FormatIdentifier REGID
	AdditionalInfo   []byte
}

func (d *RegistrationDescriptor) DescriptorTag() DescriptorTag { return DescriptorTagRegistration }
func (d *RegistrationDescriptor) EDID() EDID                   { return EDIDStandard(DescriptorTagRegistration) }

// Several registrations may legitimately coexist in one list.
func (d *RegistrationDescriptor) DuplicationMode() DuplicationMode { return DuplicationAddOther }

func (d *RegistrationDescriptor) Serialize(_ *SignalContext) (*Descriptor, error) {
	return serializeDescriptorPayload(d.DescriptorTag(), func(b *PSIBuffer) {
		b.PutUInt32(uint32(d.FormatIdentifier))
		b.PutBytes(d.AdditionalInfo)
	})
}

func (d *RegistrationDescriptor) Deserialize(_ *SignalContext, bin *Descriptor) error {
	b, err := payloadReader(d.DescriptorTag(), bin)
	if err != nil {
		return err
	}
	d.FormatIdentifier = REGID(b.GetUInt32())
	d.AdditionalInfo = append([]byte(nil), b.GetBytes(b.RemainingReadBytes())...)
	if b.ReadError() {
		return fmt.Errorf("psisi: short registration_descriptor payload")
	}
	return nil
}

func (d *RegistrationDescriptor) Merge(TypedDescriptor) bool { return false }
func (d *RegistrationDescriptor) XMLName() string            { return "registration_descriptor" }

func (d *RegistrationDescriptor) ToXML(_ *SignalContext) *XMLElement {
	el := NewXMLElement(d.XMLName())
	el.SetAttr("format_identifier", fmt.Sprintf("0x%08X", uint32(d.FormatIdentifier)))
	if len(d.AdditionalInfo) > 0 {
		el.AddChild(NewXMLElement("additional_identification_info")).SetHexText(d.AdditionalInfo)
	}
	return el
}

func (d *RegistrationDescriptor) FromXML(_ *SignalContext, el *XMLElement) error {
	id, err := el.UintAttr("format_identifier")
	if err != nil {
		return err
	}
	d.FormatIdentifier = REGID(id)
	d.AdditionalInfo = nil
	for _, child := range el.Children {
		if child.Name() == "additional_identification_info" {
			if d.AdditionalInfo, err = child.HexText(); err != nil {
				return err
			}
		}
	}
	return nil
}

// PrivateDataSpecifierDescriptor opens the DVB private semantics of the
// following descriptors (ETSI EN 300 468, 6.2.31).
type PrivateDataSpecifierDescriptor struct {
	Specifier PDS
}

func (d *PrivateDataSpecifierDescriptor) DescriptorTag() DescriptorTag {
	return DescriptorTagPrivateDataSpecifier
}

func (d *PrivateDataSpecifierDescriptor) EDID() EDID {
	return EDIDStandard(DescriptorTagPrivateDataSpecifier)
}

// Position matters, never deduplicated.
func (d *PrivateDataSpecifierDescriptor) DuplicationMode() DuplicationMode {
	return DuplicationAddAlways
}

func (d *PrivateDataSpecifierDescriptor) Serialize(_ *SignalContext) (*Descriptor, error) {
	return serializeDescriptorPayload(d.DescriptorTag(), func(b *PSIBuffer) {
		b.PutUInt32(uint32(d.Specifier))
	})
}

func (d *PrivateDataSpecifierDescriptor) Deserialize(_ *SignalContext, bin *Descriptor) error {
	b, err := payloadReader(d.DescriptorTag(), bin)
	if err != nil {
		return err
	}
	d.Specifier = PDS(b.GetUInt32())
	if b.ReadError() {
		return fmt.Errorf("psisi: short private_data_specifier_descriptor payload")
	}
	return nil
}

func (d *PrivateDataSpecifierDescriptor) Merge(TypedDescriptor) bool { return false }

func (d *PrivateDataSpecifierDescriptor) XMLName() string {
	return "private_data_specifier_descriptor"
}

func (d *PrivateDataSpecifierDescriptor) ToXML(_ *SignalContext) *XMLElement {
	el := NewXMLElement(d.XMLName())
	el.SetAttr("private_data_specifier", fmt.Sprintf("0x%08X", uint32(d.Specifier)))
	return el
}

func (d *PrivateDataSpecifierDescriptor) FromXML(_ *SignalContext, el *XMLElement) error {
	v, err := el.UintAttr("private_data_specifier")
	if err != nil {
		return err
	}
	d.Specifier = PDS(v)
	return nil
}

// LanguageEntry is one language of an ISO_639_language_descriptor.
type LanguageEntry struct {
	Code      string
	AudioType uint8
}

// ISO639LanguageDescriptor lists the languages of an audio stream
// (ISO/IEC 13818-1, 2.6.18).
type ISO639LanguageDescriptor struct {
	Entries []LanguageEntry
}

func (d *ISO639LanguageDescriptor) DescriptorTag() DescriptorTag { return DescriptorTagISO639Language }
func (d *ISO639LanguageDescriptor) EDID() EDID                   { return EDIDStandard(DescriptorTagISO639Language) }

func (d *ISO639LanguageDescriptor) DuplicationMode() DuplicationMode { return DuplicationMerge }

func (d *ISO639LanguageDescriptor) Serialize(_ *SignalContext) (*Descriptor, error) {
	return serializeDescriptorPayload(d.DescriptorTag(), func(b *PSIBuffer) {
		for _, e := range d.Entries {
			b.PutLanguageCode(e.Code, false)
			b.PutUInt8(e.AudioType)
		}
	})
}

func (d *ISO639LanguageDescriptor) Deserialize(_ *SignalContext, bin *Descriptor) error {
	b, err := payloadReader(d.DescriptorTag(), bin)
	if err != nil {
		return err
	}
	d.Entries = nil
	for b.RemainingReadBytes() >= 4 {
		code := b.GetLanguageCode()
		d.Entries = append(d.Entries, LanguageEntry{Code: code, AudioType: b.GetUInt8()})
	}
	if b.ReadError() {
		return fmt.Errorf("psisi: malformed ISO_639_language_descriptor payload")
	}
	return nil
}

// Merge appends the languages of the other descriptor which are not
// already listed, as long as the result still fits one descriptor.
func (d *ISO639LanguageDescriptor) Merge(other TypedDescriptor) bool {
	o, ok := other.(*ISO639LanguageDescriptor)
	if !ok {
		return false
	}
	merged := append([]LanguageEntry(nil), d.Entries...)
	for _, e := range o.Entries {
		known := false
		for _, have := range merged {
			if have == e {
				known = true
				break
			}
		}
		if !known {
			merged = append(merged, e)
		}
	}
	if 4*len(merged) > MaxDescriptorPayloadSize {
		return false
	}
	d.Entries = merged
	return true
}

func (d *ISO639LanguageDescriptor) XMLName() string { return "ISO_639_language_descriptor" }

func (d *ISO639LanguageDescriptor) ToXML(_ *SignalContext) *XMLElement {
	el := NewXMLElement(d.XMLName())
	for _, e := range d.Entries {
		lang := el.AddChild(NewXMLElement("language"))
		lang.SetAttr("code", e.Code)
		lang.SetAttr("audio_type", fmt.Sprintf("0x%02X", e.AudioType))
	}
	return el
}

func (d *ISO639LanguageDescriptor) FromXML(_ *SignalContext, el *XMLElement) error {
	d.Entries = nil
	for _, child := range el.Children {
		if child.Name() != "language" {
			return fmt.Errorf("psisi: unknown element <%s> in <%s>", child.Name(), el.Name())
		}
		code, ok := child.Attr("code")
		if !ok || len(code) != 3 {
			return fmt.Errorf("psisi: invalid language code %q in <%s>", code, el.Name())
		}
		audio, err := child.UintAttr("audio_type")
		if err != nil {
			return err
		}
		d.Entries = append(d.Entries, LanguageEntry{Code: code, AudioType: uint8(audio)})
	}
	return nil
}

// StreamIdentifierDescriptor labels an elementary stream with a component
// tag (ETSI EN 300 468, 6.2.39).
type StreamIdentifierDescriptor struct {
	ComponentTag uint8
}

func (d *StreamIdentifierDescriptor) DescriptorTag() DescriptorTag {
	return DescriptorTagStreamIdentifier
}

func (d *StreamIdentifierDescriptor) EDID() EDID {
	return EDIDStandard(DescriptorTagStreamIdentifier)
}

// One component tag per stream.
func (d *StreamIdentifierDescriptor) DuplicationMode() DuplicationMode { return DuplicationIgnore }

func (d *StreamIdentifierDescriptor) Serialize(_ *SignalContext) (*Descriptor, error) {
	return serializeDescriptorPayload(d.DescriptorTag(), func(b *PSIBuffer) {
		b.PutUInt8(d.ComponentTag)
	})
}

func (d *StreamIdentifierDescriptor) Deserialize(_ *SignalContext, bin *Descriptor) error {
	b, err := payloadReader(d.DescriptorTag(), bin)
	if err != nil {
		return err
	}
	d.ComponentTag = b.GetUInt8()
	if b.ReadError() {
		return fmt.Errorf("psisi: short stream_identifier_descriptor payload")
	}
	return nil
}

func (d *StreamIdentifierDescriptor) Merge(TypedDescriptor) bool { return false }
func (d *StreamIdentifierDescriptor) XMLName() string            { return "stream_identifier_descriptor" }

func (d *StreamIdentifierDescriptor) ToXML(_ *SignalContext) *XMLElement {
	el := NewXMLElement(d.XMLName())
	el.SetAttr("component_tag", fmt.Sprintf("0x%02X", d.ComponentTag))
	return el
}

func (d *StreamIdentifierDescriptor) FromXML(_ *SignalContext, el *XMLElement) error {
	v, err := el.UintAttr("component_tag")
	if err != nil {
		return err
	}
	d.ComponentTag = uint8(v)
	return nil
}

// NetworkNameDescriptor names a DVB network, valid inside a NIT only
// (ETSI EN 300 468, 6.2.27).
type NetworkNameDescriptor struct {
	Name string
}

func (d *NetworkNameDescriptor) DescriptorTag() DescriptorTag { return DescriptorTagNetworkName }

func (d *NetworkNameDescriptor) EDID() EDID {
	return EDIDTableSpecific(DescriptorTagNetworkName, StandardsDVB, TableIDNITActual, TableIDNITOther)
}

// A network has one name.
func (d *NetworkNameDescriptor) DuplicationMode() DuplicationMode { return DuplicationReplace }

func (d *NetworkNameDescriptor) Serialize(_ *SignalContext) (*Descriptor, error) {
	return serializeDescriptorPayload(d.DescriptorTag(), func(b *PSIBuffer) {
		b.PutBytes([]byte(d.Name))
	})
}

func (d *NetworkNameDescriptor) Deserialize(_ *SignalContext, bin *Descriptor) error {
	if !bin.IsValid() || bin.Tag() != d.DescriptorTag() {
		return fmt.Errorf("psisi: not a valid network_name_descriptor")
	}
	d.Name = string(bin.Payload())
	return nil
}

func (d *NetworkNameDescriptor) Merge(TypedDescriptor) bool { return false }
func (d *NetworkNameDescriptor) XMLName() string            { return "network_name_descriptor" }

func (d *NetworkNameDescriptor) ToXML(_ *SignalContext) *XMLElement {
	el := NewXMLElement(d.XMLName())
	el.SetAttr("network_name", d.Name)
	return el
}

func (d *NetworkNameDescriptor) FromXML(_ *SignalContext, el *XMLElement) error {
	name, ok := el.Attr("network_name")
	if !ok {
		return fmt.Errorf("psisi: missing attribute %q in <%s>", "network_name", el.Name())
	}
	d.Name = name
	return nil
}

// LogicalChannel is one service entry of a logical channel number
// descriptor.
type LogicalChannel struct {
	ServiceID uint16
	Visible   bool
	Number    uint16
}

// LogicalChannelNumberDescriptor assigns channel numbers to services, an
// EACEM private descriptor (IEC/CENELEC 62216).
type LogicalChannelNumberDescriptor struct {
	Channels []LogicalChannel
}

func (d *LogicalChannelNumberDescriptor) DescriptorTag() DescriptorTag {
	return DescriptorTagLogicalChannelNumber
}

func (d *LogicalChannelNumberDescriptor) EDID() EDID {
	return EDIDPrivateDVB(DescriptorTagLogicalChannelNumber, PDSEACEM)
}

// One channel plan per list.
func (d *LogicalChannelNumberDescriptor) DuplicationMode() DuplicationMode {
	return DuplicationReplace
}

func (d *LogicalChannelNumberDescriptor) Serialize(_ *SignalContext) (*Descriptor, error) {
	return serializeDescriptorPayload(d.DescriptorTag(), func(b *PSIBuffer) {
		for _, c := range d.Channels {
			b.PutUInt16(c.ServiceID)
			b.PutBit(b2u(c.Visible))
			b.PutBits(0xff, 5)
			b.PutBits(uint32(c.Number), 10)
		}
	})
}

func (d *LogicalChannelNumberDescriptor) Deserialize(_ *SignalContext, bin *Descriptor) error {
	b, err := payloadReader(d.DescriptorTag(), bin)
	if err != nil {
		return err
	}
	d.Channels = nil
	for b.RemainingReadBytes() >= 4 {
		c := LogicalChannel{ServiceID: b.GetUInt16(), Visible: b.GetBit() == 1}
		b.SkipBits(5)
		c.Number = uint16(b.GetBits(10))
		d.Channels = append(d.Channels, c)
	}
	if b.ReadError() {
		return fmt.Errorf("psisi: malformed logical_channel_number_descriptor payload")
	}
	return nil
}

func (d *LogicalChannelNumberDescriptor) Merge(TypedDescriptor) bool { return false }

func (d *LogicalChannelNumberDescriptor) XMLName() string {
	return "logical_channel_number_descriptor"
}

func (d *LogicalChannelNumberDescriptor) ToXML(_ *SignalContext) *XMLElement {
	el := NewXMLElement(d.XMLName())
	for _, c := range d.Channels {
		svc := el.AddChild(NewXMLElement("service"))
		svc.SetAttr("service_id", fmt.Sprintf("0x%04X", c.ServiceID))
		svc.SetAttr("logical_channel_number", fmt.Sprintf("%d", c.Number))
		svc.SetAttr("visible_service", fmt.Sprintf("%t", c.Visible))
	}
	return el
}

func (d *LogicalChannelNumberDescriptor) FromXML(_ *SignalContext, el *XMLElement) error {
	d.Channels = nil
	for _, child := range el.Children {
		if child.Name() != "service" {
			return fmt.Errorf("psisi: unknown element <%s> in <%s>", child.Name(), el.Name())
		}
		sid, err := child.UintAttr("service_id")
		if err != nil {
			return err
		}
		num, err := child.UintAttr("logical_channel_number")
		if err != nil {
			return err
		}
		visible, err := child.BoolAttr("visible_service", true)
		if err != nil {
			return err
		}
		d.Channels = append(d.Channels, LogicalChannel{
			ServiceID: uint16(sid),
			Visible:   visible,
			Number:    uint16(num),
		})
	}
	return nil
}
