package psisi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/asticode/go-astikit"
)

// ParentTable is the non-owning relation between a descriptor list and the
// table it belongs to. The table is only consulted for its id, its defining
// standards and its sibling top-level descriptor list (program-level
// descriptors in a PMT for instance); the table always outlives its lists.
type ParentTable interface {
	TableID() TableID
	DefiningStandards() Standards
	TopDescriptors() *DescriptorList
}

// DescriptorList is an ordered sequence of binary descriptors attached to a
// parent table. A private_data_specifier_descriptor at position i applies to
// every following 0x80-0xFF tagged descriptor until the next one or the end
// of the list; registration_descriptors behave the same way for MPEG private
// semantics.
type DescriptorList struct {
	table ParentTable
	descs []*Descriptor
}

// NewDescriptorList creates an empty list attached to a parent table.
// The table may be nil for a standalone list.
func NewDescriptorList(table ParentTable) *DescriptorList {
	return &DescriptorList{table: table}
}

// Count returns the number of descriptors in the list.
func (dl *DescriptorList) Count() int {
	if dl == nil {
		return 0
	}
	return len(dl.descs)
}

// Empty reports whether the list holds no descriptor.
func (dl *DescriptorList) Empty() bool { return dl.Count() == 0 }

// At returns the descriptor at the given index, nil when out of range.
func (dl *DescriptorList) At(index int) *Descriptor {
	if dl == nil || index < 0 || index >= len(dl.descs) {
		return nil
	}
	return dl.descs[index]
}

// Table returns the parent table, nil for a standalone list.
func (dl *DescriptorList) Table() ParentTable { return dl.table }

// TableID returns the id of the parent table, TableIDNull when standalone.
func (dl *DescriptorList) TableID() TableID {
	if dl == nil || dl.table == nil {
		return TableIDNull
	}
	return dl.table.TableID()
}

func (dl *DescriptorList) definingStandards() Standards {
	if dl == nil || dl.table == nil {
		return StandardsNone
	}
	return dl.table.DefiningStandards()
}

// topDescriptors returns the top-level list of the parent table if it is
// distinct from this list.
func (dl *DescriptorList) topDescriptors() *DescriptorList {
	if dl == nil || dl.table == nil {
		return nil
	}
	if top := dl.table.TopDescriptors(); top != nil && top != dl {
		return top
	}
	return nil
}

// Clear removes all descriptors.
func (dl *DescriptorList) Clear() { dl.descs = dl.descs[:0] }

// Equal reports content equality, descriptor by descriptor.
func (dl *DescriptorList) Equal(other *DescriptorList) bool {
	if dl.Count() != other.Count() {
		return false
	}
	for i := range dl.descs {
		if !dl.descs[i].Equal(other.descs[i]) {
			return false
		}
	}
	return true
}

// Add appends a descriptor at end of list. Invalid descriptors are silently
// rejected and false is returned.
func (dl *DescriptorList) Add(d *Descriptor) bool {
	if !d.IsValid() {
		return false
	}
	dl.descs = append(dl.descs, d)
	return true
}

// AddBytes parses a flat run of [tag][length][payload] entries and appends
// each of them. Parsing stops and false is returned when a length field
// overruns the area; descriptors already appended are retained.
func (dl *DescriptorList) AddBytes(data []byte) bool {
	i := astikit.NewBytesIterator(data)
	for i.HasBytesLeft() {
		hdr, err := i.NextBytes(2)
		if err != nil || len(hdr) < 2 {
			return false
		}
		payload, err := i.NextBytes(int(hdr[1]))
		if err != nil || len(payload) < int(hdr[1]) {
			return false
		}
		dl.Add(NewDescriptor(DescriptorTag(hdr[0]), payload))
	}
	return true
}

// AddTyped serializes a typed descriptor and appends it.
func (dl *DescriptorList) AddTyped(ctx *SignalContext, td TypedDescriptor) bool {
	bin, err := td.Serialize(ctx)
	if err != nil {
		return false
	}
	return dl.Add(bin)
}

// Merge adds one typed descriptor into the list, following its duplication
// mode when a descriptor of the same extended id is already present. Every
// path that appends first inserts the required registration or private data
// specifier descriptor when the trailing context does not already carry it.
func (dl *DescriptorList) Merge(ctx *SignalContext, td TypedDescriptor) {
	bin, err := td.Serialize(ctx)
	if err != nil || !bin.IsValid() {
		return
	}

	edid := td.EDID()
	mode := td.DuplicationMode()

	// Searching for a same-type descriptor is pointless with ADD_ALWAYS.
	if mode != DuplicationAddAlways {
		if index := dl.SearchEDID(ctx, edid, 0); index < dl.Count() {
			switch mode {
			case DuplicationIgnore:
				return
			case DuplicationReplace:
				dl.descs[index] = bin
				return
			case DuplicationMerge:
				if old, derr := dl.deserializeAt(ctx, index); derr == nil && old.Merge(td) {
					if fused, serr := old.Serialize(ctx); serr == nil && fused.IsValid() {
						dl.descs[index] = fused
						return
					}
				}
				// Merge failure falls through to the default append.
			case DuplicationAddOther:
				if dl.descs[index].Equal(bin) {
					return
				}
			}
		}
	}

	dl.AddPrivateIdentifier(ctx, edid)
	dl.Add(bin)
}

// MergeList merges every descriptor of the other list into this one, in
// list order. Descriptors which cannot be deserialized, or whose type uses
// ADD_ALWAYS, are appended directly.
func (dl *DescriptorList) MergeList(ctx *SignalContext, other *DescriptorList) {
	if other == nil || other == dl {
		return
	}
	for i := range other.descs {
		td, err := other.deserializeAt(ctx, i)
		if err != nil || td.DuplicationMode() == DuplicationAddAlways {
			// A carried specifier only scopes private range tags.
			if pds := other.PrivateDataSpecifier(i); other.descs[i].Tag() >= 0x80 && pds != PDSNull {
				dl.AddPrivateDataSpecifier(pds)
			}
			dl.Add(other.descs[i])
		} else {
			dl.Merge(ctx, td)
		}
	}
}

// deserializeAt rebuilds the typed form of the descriptor at index, using
// the registry and the private context in effect at that position.
func (dl *DescriptorList) deserializeAt(ctx *SignalContext, index int) (TypedDescriptor, error) {
	d := dl.At(index)
	if !d.IsValid() {
		return nil, fmt.Errorf("psisi: no valid descriptor at index %d", index)
	}
	pds := ctx.ActualPDS(dl.PrivateDataSpecifier(index))
	regids := dl.registrationIDsBefore(index, ctx)
	factory := DefaultRepository.FactoryForDescriptor(d, pds, regids, dl.TableID(), dl.definingStandards())
	if factory == nil {
		return nil, errUnknownDescriptor(d)
	}
	td := factory()
	if err := td.Deserialize(ctx, d); err != nil {
		return nil, fmt.Errorf("psisi: deserializing descriptor %#x failed: %w", uint8(d.Tag()), err)
	}
	return td, nil
}

// AddPrivateIdentifier appends the registration or private data specifier
// descriptor required by the given extended id, unless the trailing context
// already carries it.
func (dl *DescriptorList) AddPrivateIdentifier(ctx *SignalContext, edid EDID) {
	switch edid.Kind() {
	case EDIDKindPrivateDVB:
		dl.AddPrivateDataSpecifier(edid.PDS())
	case EDIDKindPrivateMPEG:
		dl.AddRegistration(ctx, edid.RegID())
	}
}

// AddPrivateDataSpecifier appends a private_data_specifier_descriptor,
// unless the trailing specifier is already the given one.
func (dl *DescriptorList) AddPrivateDataSpecifier(pds PDS) {
	if pds == 0 || pds == PDSNull {
		return
	}
	if trailing := dl.PrivateDataSpecifier(dl.Count()); trailing == pds {
		return
	}
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(pds))
	dl.Add(NewDescriptor(DescriptorTagPrivateDataSpecifier, payload))
}

// AddRegistration appends a registration_descriptor, unless the id is
// already part of the context at end of list.
func (dl *DescriptorList) AddRegistration(ctx *SignalContext, regid REGID) {
	if regid == 0 || regid == REGIDNull {
		return
	}
	for _, r := range dl.registrationIDsBefore(dl.Count(), ctx) {
		if r == regid {
			return
		}
	}
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(regid))
	dl.Add(NewDescriptor(DescriptorTagRegistration, payload))
}

// PrivateDataSpecifier returns the private data specifier applying to the
// given position: the payload of the nearest private_data_specifier
// descriptor at a lower index. When none exists in this list, the backward
// scan continues in the parent table's top-level list. PDSNull when none.
func (dl *DescriptorList) PrivateDataSpecifier(index int) PDS {
	if index > dl.Count() {
		index = dl.Count()
	}
	if pds, ok := lastPDSIn(dl.descs[:max(index, 0)]); ok {
		return pds
	}
	if top := dl.topDescriptors(); top != nil {
		if pds, ok := lastPDSIn(top.descs); ok {
			return pds
		}
	}
	return PDSNull
}

// RegistrationID returns the nearest registration id applying to the given
// position, continuing in the parent table's top-level list when this list
// carries none before the index. REGIDNull when none.
func (dl *DescriptorList) RegistrationID(index int) REGID {
	if index > dl.Count() {
		index = dl.Count()
	}
	for i := index - 1; i >= 0; i-- {
		if r, ok := regIDOf(dl.descs[i]); ok {
			return r
		}
	}
	if top := dl.topDescriptors(); top != nil {
		for i := top.Count() - 1; i >= 0; i-- {
			if r, ok := regIDOf(top.descs[i]); ok {
				return r
			}
		}
	}
	return REGIDNull
}

// registrationIDsBefore collects the context defaults, the parent table's
// top-level registration ids and this list's registration ids up to (and
// excluding) the given index, in that order.
func (dl *DescriptorList) registrationIDsBefore(index int, ctx *SignalContext) []REGID {
	regids := append([]REGID(nil), ctx.regIDs()...)
	if top := dl.topDescriptors(); top != nil {
		for _, d := range top.descs {
			if r, ok := regIDOf(d); ok {
				regids = append(regids, r)
			}
		}
	}
	if index > dl.Count() {
		index = dl.Count()
	}
	for _, d := range dl.descs[:max(index, 0)] {
		if r, ok := regIDOf(d); ok {
			regids = append(regids, r)
		}
	}
	return regids
}

// Search returns the index of the first descriptor with the given tag, at
// or after start. When pds is non-zero and the tag is in the private range
// (0x80-0xFF), only positions whose trailing private data specifier equals
// pds match. Count() is returned when not found.
func (dl *DescriptorList) Search(tag DescriptorTag, start int, pds PDS) int {
	checkPDS := pds != 0 && pds != PDSNull && tag >= 0x80
	current := PDS(0)
	for i := 0; i < dl.Count(); i++ {
		d := dl.descs[i]
		if i >= start && d.Tag() == tag && (!checkPDS || current == pds) {
			return i
		}
		if p, ok := pdsOf(d); ok {
			current = p
		}
	}
	return dl.Count()
}

// SearchEDID returns the index of the first descriptor matching the given
// extended id, at or after start. The private context (specifier and
// registration ids) is tracked incrementally during the scan itself.
// Count() is returned when not found.
func (dl *DescriptorList) SearchEDID(ctx *SignalContext, edid EDID, start int) int {
	n := dl.Count()
	if !edid.IsValid() {
		return n
	}
	// A table-specific id cannot match inside the wrong table. An unknown
	// parent table is assumed to match.
	if edid.Kind() == EDIDKindTableSpecific && dl.table != nil &&
		!edid.MatchTableSpecific(dl.table.TableID(), dl.definingStandards()) {
		return n
	}

	pds := PDS(0)
	regids := append([]REGID(nil), ctx.regIDs()...)
	if top := dl.topDescriptors(); top != nil {
		for _, d := range top.descs {
			if r, ok := regIDOf(d); ok {
				regids = append(regids, r)
			}
		}
	}
	for i := 0; i < n; i++ {
		d := dl.descs[i]
		if i >= start && edid.matches(d, ctx.ActualPDS(pds), regids) {
			return i
		}
		if p, ok := pdsOf(d); ok {
			pds = p
		}
		if r, ok := regIDOf(d); ok {
			regids = append(regids, r)
		}
	}
	return n
}

// CanRemovePDS reports whether the private_data_specifier_descriptor at the
// given index can be removed without orphaning a private descriptor: no
// descriptor with tag 0x80-0xFF may appear between it and the next
// private_data_specifier_descriptor or the end of the list.
func (dl *DescriptorList) CanRemovePDS(index int) bool {
	d := dl.At(index)
	if !d.IsValid() || d.Tag() != DescriptorTagPrivateDataSpecifier {
		return false
	}
	for i := index + 1; i < dl.Count(); i++ {
		tag := dl.descs[i].Tag()
		if tag >= 0x80 {
			return false
		}
		if tag == DescriptorTagPrivateDataSpecifier {
			break
		}
	}
	return true
}

// RemoveByIndex removes one descriptor. A private_data_specifier_descriptor
// is removable only under the CanRemovePDS rule.
func (dl *DescriptorList) RemoveByIndex(index int) bool {
	if index < 0 || index >= dl.Count() {
		return false
	}
	if dl.descs[index].Tag() == DescriptorTagPrivateDataSpecifier && !dl.CanRemovePDS(index) {
		return false
	}
	dl.descs = append(dl.descs[:index], dl.descs[index+1:]...)
	return true
}

// RemoveByTag removes all descriptors with the given tag and returns how
// many were removed. When pds is non-zero and the tag is in the private
// range, only descriptors whose trailing specifier equals pds are removed.
func (dl *DescriptorList) RemoveByTag(tag DescriptorTag, pds PDS) int {
	checkPDS := pds != 0 && pds != PDSNull && tag >= 0x80
	removed := 0
	current := PDS(0)
	for i := 0; i < dl.Count(); {
		d := dl.descs[i]
		match := d.Tag() == tag && (!checkPDS || current == pds)
		if match && (d.Tag() != DescriptorTagPrivateDataSpecifier || dl.CanRemovePDS(i)) {
			dl.descs = append(dl.descs[:i], dl.descs[i+1:]...)
			removed++
			continue
		}
		if p, ok := pdsOf(d); ok {
			current = p
		}
		i++
	}
	return removed
}

// RemoveInvalidPrivateDescriptors removes, in one forward pass, every
// invalid descriptor and every 0x80-0xFF tagged descriptor which has no
// active private data specifier. Returns the number of removed descriptors.
func (dl *DescriptorList) RemoveInvalidPrivateDescriptors() int {
	removed := 0
	current := PDS(0)
	for i := 0; i < dl.Count(); {
		d := dl.descs[i]
		if !d.IsValid() || (d.Tag() >= 0x80 && current == 0) {
			dl.descs = append(dl.descs[:i], dl.descs[i+1:]...)
			removed++
			continue
		}
		if p, ok := pdsOf(d); ok {
			current = p
		}
		i++
	}
	return removed
}

// BinarySize returns the number of bytes required to serialize count
// descriptors starting at start.
func (dl *DescriptorList) BinarySize(start, count int) int {
	start = min(max(start, 0), dl.Count())
	count = min(max(count, 0), dl.Count()-start)
	size := 0
	for _, d := range dl.descs[start : start+count] {
		size += d.Size()
	}
	return size
}

// Serialize writes whole descriptors into data, starting at the start
// index, and stops at the first descriptor that would not fit. It returns
// the number of bytes written and the index of the first descriptor not
// written, for continuation in a subsequent section.
func (dl *DescriptorList) Serialize(data []byte, start int) (written, next int) {
	next = min(max(start, 0), dl.Count())
	for next < dl.Count() && dl.descs[next].Size() <= len(data)-written {
		written += copy(data[written:], dl.descs[next].Content())
		next++
	}
	return written, next
}

// LengthSerialize serializes like Serialize but prepends a 2-byte length
// field: the low lengthBits bits carry the byte count of the descriptors
// written, the remaining high bits are forced to 1. lengthBits out of the
// 1-16 range defaults to 12. data must hold at least 2 bytes.
func (dl *DescriptorList) LengthSerialize(data []byte, start int, lengthBits int) (written, next int) {
	if len(data) < 2 {
		return 0, min(max(start, 0), dl.Count())
	}
	if lengthBits < 1 || lengthBits > 16 {
		lengthBits = 12
	}
	n, next := dl.Serialize(data[2:], start)
	reserved := uint16(0xffff) << lengthBits
	binary.BigEndian.PutUint16(data, reserved|uint16(n)&^reserved)
	return n + 2, next
}

// Bytes serializes the whole list starting at the given index into a fresh
// byte block.
func (dl *DescriptorList) Bytes(start int) []byte {
	buf := &bytes.Buffer{}
	w := astikit.NewBitsWriter(astikit.BitsWriterOptions{Writer: buf})
	b := astikit.NewBitsWriterBatch(w)
	start = min(max(start, 0), dl.Count())
	for _, d := range dl.descs[start:] {
		b.Write(d.Content())
	}
	if b.Err() != nil {
		return nil
	}
	return buf.Bytes()
}

// LanguageBrowser is called with each language code found while browsing a
// list; returning false stops the browse.
type LanguageBrowser func(index int, language string) bool

// BrowseLanguages walks all known language-bearing descriptors from the
// start index and reports every 3-letter code they carry: ISO-639 language,
// component, subtitling, teletext, VBI teletext, the multilingual variants,
// short and extended events, plus ATSC caption service and the ISDB audio
// component and data content descriptors when the respective standard (or
// its placeholder specifier) is in effect.
func (dl *DescriptorList) BrowseLanguages(ctx *SignalContext, start int, browse LanguageBrowser) {
	standards := ctx.standards() | dl.definingStandards()
	atsc := standards&StandardsATSC != 0
	isdb := standards&StandardsISDB != 0

	pds := PDS(0)
	for index := 0; index < dl.Count(); index++ {
		d := dl.descs[index]
		if p, ok := pdsOf(d); ok {
			pds = p
		}
		if index < start || !d.IsValid() {
			continue
		}

		tag := d.Tag()
		data := d.Payload()

		emit := func(code []byte) bool { return browse(index, languageString(code)) }
		switch {
		case tag == DescriptorTagISO639Language:
			for ; len(data) >= 4; data = data[4:] {
				if !emit(data[:3]) {
					return
				}
			}
		case tag == DescriptorTagComponent && len(data) >= 6:
			if !emit(data[3:6]) {
				return
			}
		case tag == DescriptorTagSubtitling:
			for ; len(data) >= 8; data = data[8:] {
				if !emit(data[:3]) {
					return
				}
			}
		case tag == DescriptorTagTeletext || tag == DescriptorTagVBITeletext:
			for ; len(data) >= 5; data = data[5:] {
				if !emit(data[:3]) {
					return
				}
			}
		case tag == DescriptorTagMultilingualComponent ||
			tag == DescriptorTagMultilingualBouquetName ||
			tag == DescriptorTagMultilingualNetworkName:
			if tag == DescriptorTagMultilingualComponent && len(data) > 0 {
				// Skip the leading component_tag.
				data = data[1:]
			}
			for len(data) >= 4 {
				if !emit(data[:3]) {
					return
				}
				data = data[min(4+int(data[3]), len(data)):]
			}
		case tag == DescriptorTagMultilingualServiceName:
			for len(data) >= 4 {
				if !emit(data[:3]) {
					return
				}
				// Skip the provider name, then the service name.
				skip := min(4+int(data[3]), len(data))
				if skip < len(data) {
					skip = min(skip+1+int(data[skip]), len(data))
				}
				data = data[skip:]
			}
		case tag == DescriptorTagShortEvent && len(data) >= 3:
			if !emit(data[:3]) {
				return
			}
		case tag == DescriptorTagExtendedEvent && len(data) >= 4:
			if !emit(data[1:4]) {
				return
			}
		case (atsc || pds == PDSATSC) && tag == DescriptorTagATSCCaptionService && len(data) > 0:
			data = data[1:]
			for ; len(data) >= 6; data = data[6:] {
				if !emit(data[:3]) {
					return
				}
			}
		case (isdb || pds == PDSISDB) && tag == DescriptorTagISDBAudioComponent:
			if len(data) >= 9 && !emit(data[6:9]) {
				return
			}
			if len(data) >= 12 && data[5]&0x80 != 0 && !emit(data[9:12]) {
				return
			}
		case (isdb || pds == PDSISDB) && tag == DescriptorTagISDBDataContent && len(data) >= 4:
			skip := min(4+int(data[3]), len(data))
			if skip < len(data) {
				skip = min(skip+1+int(data[skip]), len(data))
			}
			if skip+3 <= len(data) && !emit(data[skip:skip+3]) {
				return
			}
		}
	}
}

// SearchLanguage returns the index of the first descriptor carrying the
// given 3-letter language code, or Count() when none does.
func (dl *DescriptorList) SearchLanguage(ctx *SignalContext, language string, start int) int {
	if len(language) != 3 {
		return dl.Count()
	}
	found := dl.Count()
	dl.BrowseLanguages(ctx, start, func(index int, lang string) bool {
		if strings.EqualFold(lang, language) {
			found = index
			return false
		}
		return true
	})
	return found
}

// GetAllLanguages collects up to max language codes from the list, in
// browse order.
func (dl *DescriptorList) GetAllLanguages(ctx *SignalContext, max int) []string {
	var langs []string
	dl.BrowseLanguages(ctx, 0, func(_ int, lang string) bool {
		langs = append(langs, lang)
		return len(langs) < max
	})
	return langs
}

// SearchSubtitle looks for a subtitle-capable descriptor: a DVB subtitling
// descriptor, or a teletext descriptor with a subtitle teletext type. When
// language is empty the first such descriptor matches. When a language is
// given, the index of the matching descriptor is returned; Count()+1 is
// returned when subtitles exist but none in that language; Count() when no
// subtitle-capable descriptor exists at all.
func (dl *DescriptorList) SearchSubtitle(language string, start int) int {
	notFound := dl.Count()

	for index := start; index < dl.Count(); index++ {
		d := dl.descs[index]
		if !d.IsValid() {
			continue
		}
		data := d.Payload()

		switch d.Tag() {
		case DescriptorTagSubtitling:
			// Always subtitles.
			if language == "" {
				return index
			}
			notFound = dl.Count() + 1
			for ; len(data) >= 8; data = data[8:] {
				if strings.EqualFold(languageString(data[:3]), language) {
					return index
				}
			}
		case DescriptorTagTeletext:
			for ; len(data) >= 5; data = data[5:] {
				telType := data[3] >> 3
				if telType != TeletextTypeSubtitle && telType != TeletextTypeSubtitleForHearingImpaired {
					continue
				}
				if language == "" {
					return index
				}
				notFound = dl.Count() + 1
				if strings.EqualFold(languageString(data[:3]), language) {
					return index
				}
			}
		}
	}
	return notFound
}

// pdsOf extracts the specifier from a private_data_specifier_descriptor.
func pdsOf(d *Descriptor) (PDS, bool) {
	if d.IsValid() && d.Tag() == DescriptorTagPrivateDataSpecifier && d.PayloadSize() >= 4 {
		return PDS(binary.BigEndian.Uint32(d.Payload())), true
	}
	return 0, false
}

// regIDOf extracts the format identifier from a registration_descriptor.
func regIDOf(d *Descriptor) (REGID, bool) {
	if d.IsValid() && d.Tag() == DescriptorTagRegistration && d.PayloadSize() >= 4 {
		return REGID(binary.BigEndian.Uint32(d.Payload())), true
	}
	return 0, false
}

func lastPDSIn(descs []*Descriptor) (PDS, bool) {
	for i := len(descs) - 1; i >= 0; i-- {
		if pds, ok := pdsOf(descs[i]); ok {
			return pds, true
		}
	}
	return 0, false
}

func languageString(code []byte) string {
	// Non-ASCII bytes are dropped, consistently with language code reads
	// from a PSIBuffer.
	var sb strings.Builder
	for _, c := range code {
		if c >= 0x20 && c <= 0x7f {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
