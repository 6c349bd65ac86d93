package psisi

import "fmt"

// TypedDescriptor is the structured form of one descriptor type. Binary
// and XML conversions go through the signal context so that standard and
// private semantics resolve the same way everywhere.
type TypedDescriptor interface {
	DescriptorTag() DescriptorTag
	EDID() EDID
	DuplicationMode() DuplicationMode
	Serialize(ctx *SignalContext) (*Descriptor, error)
	Deserialize(ctx *SignalContext, bin *Descriptor) error
	// Merge fuses another descriptor of the same type into this one.
	// It returns false when the two cannot be merged.
	Merge(other TypedDescriptor) bool
	XMLName() string
	ToXML(ctx *SignalContext) *XMLElement
	FromXML(ctx *SignalContext, el *XMLElement) error
}

// DescriptorFactory creates a blank typed descriptor.
type DescriptorFactory func() TypedDescriptor

type descriptorRegistration struct {
	edid    EDID
	xmlName string
	factory DescriptorFactory
}

// Repository maps extended descriptor ids and XML element names to typed
// descriptor constructors. Registrations happen at package init time; the
// repository is read-only afterwards and safe for concurrent lookups.
type Repository struct {
	byTag     map[DescriptorTag][]descriptorRegistration
	byXMLName map[string]descriptorRegistration
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		byTag:     map[DescriptorTag][]descriptorRegistration{},
		byXMLName: map[string]descriptorRegistration{},
	}
}

// Register binds an extended descriptor id and an XML element name to a
// constructor. Invalid ids are ignored.
func (r *Repository) Register(edid EDID, xmlName string, factory DescriptorFactory) {
	if !edid.IsValid() || factory == nil {
		return
	}
	reg := descriptorRegistration{edid: edid, xmlName: xmlName, factory: factory}
	r.byTag[edid.Tag()] = append(r.byTag[edid.Tag()], reg)
	if xmlName != "" {
		r.byXMLName[xmlName] = reg
	}
}

// FactoryForDescriptor returns the constructor matching a binary descriptor
// under the given private context and enclosing table, nil when the
// descriptor type is unknown.
func (r *Repository) FactoryForDescriptor(d *Descriptor, pds PDS, regids []REGID, tid TableID, std Standards) DescriptorFactory {
	if !d.IsValid() {
		return nil
	}
	for _, reg := range r.byTag[d.Tag()] {
		if reg.edid.Kind() == EDIDKindTableSpecific && !reg.edid.MatchTableSpecific(tid, std) {
			continue
		}
		if reg.edid.matches(d, pds, regids) {
			return reg.factory
		}
	}
	return nil
}

// FactoryForXML returns the constructor registered under an XML element
// name, nil when unknown.
func (r *Repository) FactoryForXML(name string) DescriptorFactory {
	if reg, ok := r.byXMLName[name]; ok {
		return reg.factory
	}
	return nil
}

// XMLNameForEDID returns the XML element name registered for an extended
// id, empty when unknown.
func (r *Repository) XMLNameForEDID(edid EDID) string {
	for _, reg := range r.byTag[edid.Tag()] {
		if reg.edid.kind == edid.kind && reg.edid.xdid == edid.xdid &&
			reg.edid.regid == edid.regid && reg.edid.pds == edid.pds {
			return reg.xmlName
		}
	}
	return ""
}

// DefaultRepository holds the descriptor types registered at init time.
var DefaultRepository = NewRepository()

// RegisterDescriptor registers a descriptor type in the default repository.
func RegisterDescriptor(edid EDID, xmlName string, factory DescriptorFactory) {
	DefaultRepository.Register(edid, xmlName, factory)
}

// DeserializeDescriptor rebuilds the typed form of a binary descriptor,
// resolving the private context through the given descriptor context.
func DeserializeDescriptor(ctx *SignalContext, dctx *DescriptorContext, d *Descriptor) (TypedDescriptor, error) {
	factory := DefaultRepository.FactoryForDescriptor(d, dctx.PDS(), dctx.REGIDs(), dctx.TableID(), dctx.Standards())
	if factory == nil {
		return nil, errUnknownDescriptor(d)
	}
	td := factory()
	if err := td.Deserialize(ctx, d); err != nil {
		return nil, err
	}
	return td, nil
}

func errUnknownDescriptor(d *Descriptor) error {
	return fmt.Errorf("psisi: no registered type for descriptor tag %#x", uint8(d.Tag()))
}
