package psisi

// EDIDKind discriminates the five families of extended descriptor ids.
type EDIDKind int

const (
	EDIDKindInvalid EDIDKind = iota
	// EDIDKindStandard identifies a descriptor by its tag only.
	EDIDKindStandard
	// EDIDKindExtension identifies an MPEG or DVB extension descriptor by
	// its tag and the extension tag in the first payload byte.
	EDIDKindExtension
	// EDIDKindTableSpecific identifies a descriptor whose semantics depend
	// on the owning table.
	EDIDKindTableSpecific
	// EDIDKindPrivateMPEG identifies a descriptor in the context of a
	// preceding registration_descriptor.
	EDIDKindPrivateMPEG
	// EDIDKindPrivateDVB identifies a descriptor in the context of a
	// preceding private_data_specifier_descriptor.
	EDIDKindPrivateDVB
)

// EDID is an extended descriptor id: a descriptor tag qualified by the
// context which disambiguates it (extension byte, owning table,
// registration id or private data specifier).
type EDID struct {
	kind  EDIDKind
	xdid  XDID
	std   Standards
	tids  []TableID
	regid REGID
	pds   PDS
}

// EDIDStandard builds the id of a regular descriptor, identified by tag only.
func EDIDStandard(tag DescriptorTag) EDID {
	return EDID{kind: EDIDKindStandard, xdid: XDID{Tag: tag}}
}

// EDIDExtension builds the id of an MPEG or DVB extension descriptor.
func EDIDExtension(tag DescriptorTag, ext uint8) EDID {
	if tag != DescriptorTagMPEGExtension && tag != DescriptorTagDVBExtension {
		return EDID{}
	}
	return EDID{kind: EDIDKindExtension, xdid: XDID{Tag: tag, Extension: ext, HasExtension: true}}
}

// EDIDTableSpecific builds the id of a descriptor whose meaning is valid
// only inside the given tables of the given standard.
func EDIDTableSpecific(tag DescriptorTag, std Standards, tids ...TableID) EDID {
	return EDID{kind: EDIDKindTableSpecific, xdid: XDID{Tag: tag}, std: std, tids: tids}
}

// EDIDPrivateMPEG builds the id of a descriptor valid after a
// registration_descriptor with the given registration id.
func EDIDPrivateMPEG(tag DescriptorTag, regid REGID) EDID {
	return EDID{kind: EDIDKindPrivateMPEG, xdid: XDID{Tag: tag}, regid: regid}
}

// EDIDPrivateDVB builds the id of a descriptor valid after a
// private_data_specifier_descriptor with the given specifier.
func EDIDPrivateDVB(tag DescriptorTag, pds PDS) EDID {
	return EDID{kind: EDIDKindPrivateDVB, xdid: XDID{Tag: tag}, pds: pds}
}

func (e EDID) Kind() EDIDKind     { return e.kind }
func (e EDID) Tag() DescriptorTag { return e.xdid.Tag }
func (e EDID) XDID() XDID         { return e.xdid }
func (e EDID) RegID() REGID       { return e.regid }
func (e EDID) PDS() PDS           { return e.pds }
func (e EDID) IsValid() bool      { return e.kind != EDIDKindInvalid }

// MatchTableSpecific reports whether a table-specific id is usable inside
// the given table. Non-table-specific ids match any table.
func (e EDID) MatchTableSpecific(tid TableID, std Standards) bool {
	if e.kind != EDIDKindTableSpecific {
		return true
	}
	if e.std != StandardsNone && std != StandardsNone && e.std&std == 0 {
		return false
	}
	for _, t := range e.tids {
		if t == tid {
			return true
		}
	}
	return false
}

// matches checks a binary descriptor against this id, given the private
// context (trailing specifier and registration ids) in effect at the
// descriptor's position.
func (e EDID) matches(d *Descriptor, pds PDS, regids []REGID) bool {
	if !d.IsValid() || d.Tag() != e.xdid.Tag {
		return false
	}
	switch e.kind {
	case EDIDKindStandard, EDIDKindTableSpecific:
		// Table compatibility is pre-checked by the caller once per list.
		return true
	case EDIDKindExtension:
		return d.XDID() == e.xdid
	case EDIDKindPrivateMPEG:
		for _, r := range regids {
			if r == e.regid {
				return true
			}
		}
		return false
	case EDIDKindPrivateDVB:
		return pds == e.pds && pds != 0 && pds != PDSNull
	default:
		return false
	}
}

// DuplicationMode specifies what a merge does when a descriptor of the same
// extended id is already present in the list.
type DuplicationMode int

const (
	// DuplicationAddAlways appends unconditionally, without searching.
	DuplicationAddAlways DuplicationMode = iota
	// DuplicationIgnore drops the new descriptor.
	DuplicationIgnore
	// DuplicationReplace overwrites the existing descriptor in place.
	DuplicationReplace
	// DuplicationMerge combines the new descriptor into the existing one;
	// on failure the new descriptor is appended at end of list.
	DuplicationMerge
	// DuplicationAddOther appends only when the binary contents differ.
	DuplicationAddOther
)
