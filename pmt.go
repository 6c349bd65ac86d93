package psisi

import "fmt"

// PMT is a Program Map Table (ISO/IEC 13818-1, 2.4.4.8). The program-level
// descriptor list is the top-level list of every stream-level list, so
// that private context resolution falls back to it.
type PMT struct {
	ServiceID   uint16
	Version     uint8
	Current     bool
	PCRPID      PID
	Descriptors *DescriptorList
	Streams     []*PMTStream
}

// PMTStream is one elementary stream entry of a PMT.
type PMTStream struct {
	Type        uint8
	PID         PID
	Descriptors *DescriptorList
}

// NewPMT creates an empty, current PMT for a service.
func NewPMT(serviceID uint16) *PMT {
	p := &PMT{ServiceID: serviceID, Current: true, PCRPID: PIDNull}
	p.Descriptors = NewDescriptorList(p)
	return p
}

func (p *PMT) TableID() TableID                { return TableIDPMT }
func (p *PMT) DefiningStandards() Standards    { return StandardsMPEG }
func (p *PMT) TopDescriptors() *DescriptorList { return p.Descriptors }

// AddStream appends an elementary stream entry and returns it.
func (p *PMT) AddStream(streamType uint8, pid PID) *PMTStream {
	s := &PMTStream{Type: streamType, PID: pid, Descriptors: NewDescriptorList(p)}
	p.Streams = append(p.Streams, s)
	return s
}

// Serialize emits the PMT as a single section.
func (p *PMT) Serialize() (*Section, error) {
	b := NewPSIBuffer(MaxLongSectionPayload)
	b.PutPID(p.PCRPID)
	if b.PutPartialDescriptorListWithLength(p.Descriptors, 0, 12) < p.Descriptors.Count() {
		return nil, fmt.Errorf("psisi: program descriptors of service %d do not fit one section", p.ServiceID)
	}
	for _, s := range p.Streams {
		b.PutUInt8(s.Type)
		b.PutPID(s.PID)
		if b.PutPartialDescriptorListWithLength(s.Descriptors, 0, 12) < s.Descriptors.Count() {
			return nil, fmt.Errorf("psisi: descriptors of stream %d do not fit one section", s.PID)
		}
	}
	if b.Error() {
		return nil, fmt.Errorf("psisi: serializing PMT of service %d failed", p.ServiceID)
	}
	return &Section{
		TableID:    TableIDPMT,
		TableIDExt: p.ServiceID,
		Version:    p.Version,
		Current:    p.Current,
		Payload:    b.Bytes(),
	}, nil
}

// DeserializePMT rebuilds a PMT from one section.
func DeserializePMT(section *Section) (*PMT, error) {
	if section.TableID != TableIDPMT {
		return nil, fmt.Errorf("psisi: not a PMT section (table id %#x)", uint8(section.TableID))
	}
	p := NewPMT(section.TableIDExt)
	p.Version = section.Version
	p.Current = section.Current

	b := NewPSIBufferFromBytes(section.Payload)
	p.PCRPID = b.GetPID()
	b.GetDescriptorListWithLength(p.Descriptors, 12)
	for !b.EndOfRead() && !b.Error() {
		streamType := b.GetUInt8()
		s := p.AddStream(streamType, b.GetPID())
		b.GetDescriptorListWithLength(s.Descriptors, 12)
	}
	if b.Error() {
		return nil, fmt.Errorf("psisi: malformed PMT section for service %d", section.TableIDExt)
	}
	return p, nil
}

// ToXML renders the PMT, program and stream descriptor lists included.
func (p *PMT) ToXML(ctx *SignalContext) *XMLElement {
	el := NewXMLElement("PMT")
	el.SetAttr("version", fmt.Sprintf("%d", p.Version))
	el.SetAttr("current", fmt.Sprintf("%t", p.Current))
	el.SetAttr("service_id", fmt.Sprintf("%d", p.ServiceID))
	el.SetAttr("PCR_PID", fmt.Sprintf("0x%04X", uint16(p.PCRPID)))
	p.Descriptors.ToXML(ctx, el)
	for _, s := range p.Streams {
		comp := el.AddChild(NewXMLElement("component"))
		comp.SetAttr("stream_type", fmt.Sprintf("0x%02X", s.Type))
		comp.SetAttr("elementary_PID", fmt.Sprintf("0x%04X", uint16(s.PID)))
		s.Descriptors.ToXML(ctx, comp)
	}
	return el
}

// FromXML loads a PMT from its XML form. Component elements hold the
// stream entries, every other child is a program-level descriptor.
func (p *PMT) FromXML(ctx *SignalContext, el *XMLElement) error {
	sid, err := el.UintAttr("service_id")
	if err != nil {
		return err
	}
	p.ServiceID = uint16(sid)
	if v, err := el.UintAttr("version"); err == nil {
		p.Version = uint8(v & 0x1f)
	}
	if c, err := el.BoolAttr("current", true); err == nil {
		p.Current = c
	}
	if pcr, err := el.UintAttr("PCR_PID"); err == nil {
		p.PCRPID = PID(pcr)
	}

	components, err := p.Descriptors.FromXML(ctx, el, "component")
	if err != nil {
		return err
	}
	for _, comp := range components {
		st, err := comp.UintAttr("stream_type")
		if err != nil {
			return err
		}
		pid, err := comp.UintAttr("elementary_PID")
		if err != nil {
			return err
		}
		s := p.AddStream(uint8(st), PID(pid))
		if _, err := s.Descriptors.FromXML(ctx, comp); err != nil {
			return err
		}
	}
	return nil
}
