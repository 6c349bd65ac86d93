package psisi

import (
	"encoding/binary"

	"github.com/asticode/go-astikit"
)

// DescriptorContext resolves the private context (DVB private data
// specifier and MPEG registration ids) applying at one position inside a
// descriptor list or a raw descriptor area, plus the enclosing table id and
// standards. Resolutions are computed lazily and cached; any mutator that
// rebinds the context invalidates the stale caches. A context is a
// transient helper and must not outlive the list or buffer it is bound to.
// It is not safe for concurrent use.
type DescriptorContext struct {
	ctx         *SignalContext
	tid         TableID
	std         Standards
	useDefaults bool

	// Structured-list binding.
	list  *DescriptorList
	index int

	// Raw-area binding.
	raw     bool
	topData []byte
	curData []byte

	pds       PDS
	pdsValid  bool
	topRegIDs []REGID
	topValid  bool
	curRegIDs []REGID
	curValid  bool
}

// NewDescriptorContext creates a context in default mode: resolutions only
// return the values carried by the signal context.
func NewDescriptorContext(ctx *SignalContext, tid TableID, std Standards) *DescriptorContext {
	return &DescriptorContext{ctx: ctx, tid: tid, std: std, useDefaults: true}
}

// NewDescriptorContextForList creates a context bound to a descriptor list,
// resolving the private context applying to the descriptor at index.
func NewDescriptorContextForList(ctx *SignalContext, list *DescriptorList, index int) *DescriptorContext {
	return &DescriptorContext{ctx: ctx, list: list, index: index, useDefaults: list == nil}
}

// TableID returns the enclosing table id, from the bound list's parent
// table when there is one.
func (dc *DescriptorContext) TableID() TableID {
	if dc.list != nil {
		return dc.list.TableID()
	}
	return dc.tid
}

// Standards returns the standards in effect: the signal context's plus the
// constructor-supplied ones plus the bound table's defining standards.
func (dc *DescriptorContext) Standards() Standards {
	std := dc.ctx.standards() | dc.std
	if dc.list != nil {
		std |= dc.list.definingStandards()
	}
	return std
}

// CASID returns the conditional access system id of the signal context.
func (dc *DescriptorContext) CASID() CASID {
	if dc.ctx == nil {
		return CASIDNull
	}
	return dc.ctx.CASID
}

// PDS returns the private data specifier in effect at the bound position.
// In a structured list this is the nearest preceding
// private_data_specifier_descriptor, continuing in the parent table's
// top-level list. In a raw area the whole current area is scanned forward
// and the last specifier wins, falling back to the top-level area. The
// result is cached; when nothing is found the signal context default
// applies.
func (dc *DescriptorContext) PDS() PDS {
	if dc.useDefaults {
		return dc.ctx.ActualPDS(0)
	}
	if !dc.pdsValid {
		dc.pds = dc.resolvePDS()
		dc.pdsValid = true
	}
	return dc.ctx.ActualPDS(dc.pds)
}

func (dc *DescriptorContext) resolvePDS() PDS {
	if dc.raw {
		if pds, ok := lastPDSInRaw(dc.curData); ok {
			return pds
		}
		if pds, ok := lastPDSInRaw(dc.topData); ok {
			return pds
		}
		return PDSNull
	}
	if dc.list != nil {
		return dc.list.PrivateDataSpecifier(dc.index)
	}
	return PDSNull
}

// REGIDs returns the registration ids in effect at the bound position, in
// order: the signal context defaults, the ids found in the top-level
// list or area, then the ids found in the current-level list or area up to
// the bound position. Both scans are cached independently. The current-level
// scan also captures the last private data specifier it crosses, so that a
// later PDS call needs no second scan; the top-level scan never feeds the
// specifier cache.
func (dc *DescriptorContext) REGIDs() []REGID {
	regids := append([]REGID(nil), dc.ctx.regIDs()...)
	if dc.useDefaults {
		return regids
	}
	if !dc.topValid {
		dc.topRegIDs = dc.scanTopRegIDs()
		dc.topValid = true
	}
	regids = append(regids, dc.topRegIDs...)
	if !dc.curValid {
		var pds PDS
		var found bool
		dc.curRegIDs, pds, found = dc.scanCurrentRegIDs()
		dc.curValid = true
		if found && !dc.pdsValid {
			dc.pds = pds
			dc.pdsValid = true
		}
	}
	return append(regids, dc.curRegIDs...)
}

func (dc *DescriptorContext) scanTopRegIDs() []REGID {
	var regids []REGID
	if dc.raw {
		scanRawDescriptors(dc.topData, func(tag DescriptorTag, payload []byte) bool {
			if r, ok := regIDOfRaw(tag, payload); ok {
				regids = append(regids, r)
			}
			return true
		})
		return regids
	}
	if top := dc.list.topDescriptors(); top != nil {
		for _, d := range top.descs {
			if r, ok := regIDOf(d); ok {
				regids = append(regids, r)
			}
		}
	}
	return regids
}

func (dc *DescriptorContext) scanCurrentRegIDs() (regids []REGID, pds PDS, pdsFound bool) {
	if dc.raw {
		scanRawDescriptors(dc.curData, func(tag DescriptorTag, payload []byte) bool {
			if r, ok := regIDOfRaw(tag, payload); ok {
				regids = append(regids, r)
			}
			if tag == DescriptorTagPrivateDataSpecifier && len(payload) >= 4 {
				pds = PDS(binary.BigEndian.Uint32(payload))
				pdsFound = true
			}
			return true
		})
		return regids, pds, pdsFound
	}
	if dc.list != nil {
		end := min(dc.index+1, dc.list.Count())
		for _, d := range dc.list.descs[:max(end, 0)] {
			if r, ok := regIDOf(d); ok {
				regids = append(regids, r)
			}
			if p, ok := pdsOf(d); ok {
				pds, pdsFound = p, true
			}
		}
	}
	return regids, pds, pdsFound
}

// SetCurrentDescriptorList rebinds the context to a structured list and
// index, leaving raw mode. Passing a nil list reverts to default mode.
func (dc *DescriptorContext) SetCurrentDescriptorList(list *DescriptorList, index int) {
	dc.list, dc.index = list, index
	dc.raw = false
	dc.topData, dc.curData = nil, nil
	dc.useDefaults = list == nil
	dc.invalidate()
}

// SetCurrentRawDescriptorList rebinds the current level to a raw descriptor
// area. The top-level area binding and its cache are preserved.
func (dc *DescriptorContext) SetCurrentRawDescriptorList(data []byte) {
	dc.curData = data
	dc.raw = true
	dc.list = nil
	dc.useDefaults = false
	dc.curRegIDs, dc.curValid = nil, false
	dc.pds, dc.pdsValid = 0, false
}

// SetTopLevelRawDescriptorList rebinds the top-level raw descriptor area
// and invalidates every cache.
func (dc *DescriptorContext) SetTopLevelRawDescriptorList(data []byte) {
	dc.topData = data
	dc.raw = true
	dc.list = nil
	dc.useDefaults = false
	dc.invalidate()
}

// MoveRawDescriptorListToTop re-parents the current raw area as the
// top-level one. The current-level registration id cache moves to the
// top-level slot without a rescan; the specifier cache is dropped since a
// top-level specifier no longer applies as a current-level resolution.
func (dc *DescriptorContext) MoveRawDescriptorListToTop() {
	dc.topData = dc.curData
	dc.curData = nil
	dc.topRegIDs, dc.topValid = dc.curRegIDs, dc.curValid
	dc.curRegIDs, dc.curValid = nil, false
	dc.pds, dc.pdsValid = 0, false
}

func (dc *DescriptorContext) invalidate() {
	dc.pds, dc.pdsValid = 0, false
	dc.topRegIDs, dc.topValid = nil, false
	dc.curRegIDs, dc.curValid = nil, false
}

// scanRawDescriptors walks a flat [tag][length][payload] area. A length
// field overrunning the area stops the walk; the entries already visited
// stand. The visitor returns false to stop early.
func scanRawDescriptors(data []byte, visit func(tag DescriptorTag, payload []byte) bool) {
	i := astikit.NewBytesIterator(data)
	for i.HasBytesLeft() {
		hdr, err := i.NextBytes(2)
		if err != nil || len(hdr) < 2 {
			return
		}
		payload, err := i.NextBytes(int(hdr[1]))
		if err != nil || len(payload) < int(hdr[1]) {
			return
		}
		if !visit(DescriptorTag(hdr[0]), payload) {
			return
		}
	}
}

func lastPDSInRaw(data []byte) (PDS, bool) {
	var pds PDS
	var found bool
	scanRawDescriptors(data, func(tag DescriptorTag, payload []byte) bool {
		if tag == DescriptorTagPrivateDataSpecifier && len(payload) >= 4 {
			pds = PDS(binary.BigEndian.Uint32(payload))
			found = true
		}
		return true
	})
	return pds, found
}

func regIDOfRaw(tag DescriptorTag, payload []byte) (REGID, bool) {
	if tag == DescriptorTagRegistration && len(payload) >= 4 {
		return REGID(binary.BigEndian.Uint32(payload)), true
	}
	return 0, false
}
