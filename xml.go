package psisi

import (
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// GenericDescriptorXMLName is the element name of the raw fallback form:
// an explicit tag attribute and a hex payload as text.
const GenericDescriptorXMLName = "generic_descriptor"

// metadataXMLName children carry tool annotations and are skipped.
const metadataXMLName = "metadata"

// XMLElement is a generic XML node, preserving attributes, text and
// children in document order.
type XMLElement struct {
	XMLName  xml.Name
	Attrs    []xml.Attr    `xml:",any,attr"`
	Chardata string        `xml:",chardata"`
	Children []*XMLElement `xml:",any"`
}

// NewXMLElement creates an element with the given name.
func NewXMLElement(name string) *XMLElement {
	return &XMLElement{XMLName: xml.Name{Local: name}}
}

// Name returns the local element name.
func (e *XMLElement) Name() string { return e.XMLName.Local }

// Attr returns the value of an attribute and whether it is present.
func (e *XMLElement) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute.
func (e *XMLElement) SetAttr(name, value string) {
	for i, a := range e.Attrs {
		if a.Name.Local == name {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

// UintAttr parses a numeric attribute, accepting decimal and 0x-prefixed
// hexadecimal.
func (e *XMLElement) UintAttr(name string) (uint64, error) {
	s, ok := e.Attr(name)
	if !ok {
		return 0, fmt.Errorf("psisi: missing attribute %q in <%s>", name, e.Name())
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("psisi: invalid attribute %s=%q in <%s>: %w", name, s, e.Name(), err)
	}
	return v, nil
}

// BoolAttr parses a boolean attribute, defaulting when absent.
func (e *XMLElement) BoolAttr(name string, def bool) (bool, error) {
	s, ok := e.Attr(name)
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def, fmt.Errorf("psisi: invalid attribute %s=%q in <%s>: %w", name, s, e.Name(), err)
	}
	return v, nil
}

// HexText decodes the element text as hexadecimal bytes, ignoring
// whitespace.
func (e *XMLElement) HexText() ([]byte, error) {
	s := strings.Join(strings.Fields(e.Chardata), "")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("psisi: invalid hex content in <%s>: %w", e.Name(), err)
	}
	return data, nil
}

// SetHexText sets the element text to the hex form of data.
func (e *XMLElement) SetHexText(data []byte) {
	e.Chardata = strings.ToUpper(hex.EncodeToString(data))
}

// AddChild appends a child element and returns it.
func (e *XMLElement) AddChild(child *XMLElement) *XMLElement {
	e.Children = append(e.Children, child)
	return child
}

// FromXML loads descriptors from the children of a parent element. Each
// child is either a registered descriptor type, a generic_descriptor with
// an explicit tag attribute and hex payload, or one of the allowedOthers
// element names, which are collected and returned untouched. Any other
// element name is an error; descriptors loaded before the error are kept.
func (dl *DescriptorList) FromXML(ctx *SignalContext, parent *XMLElement, allowedOthers ...string) ([]*XMLElement, error) {
	var others []*XMLElement
	for _, child := range parent.Children {
		name := child.Name()
		switch {
		case name == metadataXMLName:
		case name == GenericDescriptorXMLName:
			d, err := descriptorFromGenericXML(child)
			if err != nil {
				return others, err
			}
			dl.Add(d)
		case DefaultRepository.FactoryForXML(name) != nil:
			td := DefaultRepository.FactoryForXML(name)()
			if err := td.FromXML(ctx, child); err != nil {
				return others, err
			}
			bin, err := td.Serialize(ctx)
			if err != nil {
				return others, err
			}
			dl.AddPrivateIdentifier(ctx, td.EDID())
			dl.Add(bin)
		case containsString(allowedOthers, name):
			others = append(others, child)
		default:
			return others, fmt.Errorf("psisi: unknown element <%s> in <%s>", name, parent.Name())
		}
	}
	return others, nil
}

// ToXML appends one child per descriptor to the parent element. Known
// types render their structured form; anything else falls back to a
// generic_descriptor node.
func (dl *DescriptorList) ToXML(ctx *SignalContext, parent *XMLElement) {
	for i := range dl.descs {
		if td, err := dl.deserializeAt(ctx, i); err == nil {
			if el := td.ToXML(ctx); el != nil {
				parent.AddChild(el)
				continue
			}
		}
		parent.AddChild(descriptorToGenericXML(dl.descs[i]))
	}
}

func descriptorFromGenericXML(el *XMLElement) (*Descriptor, error) {
	tag, err := el.UintAttr("tag")
	if err != nil {
		return nil, err
	}
	if tag > 0xff {
		return nil, fmt.Errorf("psisi: descriptor tag %#x out of range in <%s>", tag, el.Name())
	}
	payload, err := el.HexText()
	if err != nil {
		return nil, err
	}
	d := NewDescriptor(DescriptorTag(tag), payload)
	if !d.IsValid() {
		return nil, fmt.Errorf("psisi: oversized payload (%d bytes) in <%s>", len(payload), el.Name())
	}
	return d, nil
}

func descriptorToGenericXML(d *Descriptor) *XMLElement {
	el := NewXMLElement(GenericDescriptorXMLName)
	el.SetAttr("tag", fmt.Sprintf("0x%02X", uint8(d.Tag())))
	el.SetHexText(d.Payload())
	return el
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
