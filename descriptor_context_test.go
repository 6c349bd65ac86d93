package psisi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextDefaults(t *testing.T) {
	ctx := &SignalContext{PDS: PDSEACEM, RegIDs: []REGID{REGIDCUEI}}
	dc := NewDescriptorContext(ctx, TableIDPMT, StandardsMPEG)

	assert.Equal(t, PDSEACEM, dc.PDS())
	assert.Equal(t, []REGID{REGIDCUEI}, dc.REGIDs())
	assert.Equal(t, TableIDPMT, dc.TableID())
	assert.Equal(t, StandardsMPEG, dc.Standards())
}

func TestContextStructuredList(t *testing.T) {
	pmt := NewPMT(1)
	pmt.Descriptors.Add(pdsDescriptor(PDSEACEM))
	pmt.Descriptors.Add(regDescriptor(REGIDGA94))
	stream := pmt.AddStream(0x06, 100)
	stream.Descriptors.Add(regDescriptor(REGIDCUEI))
	stream.Descriptors.Add(NewDescriptor(0x83, []byte{0xaa}))

	dc := NewDescriptorContextForList(nil, stream.Descriptors, 1)
	assert.Equal(t, PDSEACEM, dc.PDS())
	assert.Equal(t, []REGID{REGIDGA94, REGIDCUEI}, dc.REGIDs())
	assert.Equal(t, TableIDPMT, dc.TableID())
	assert.Equal(t, StandardsMPEG, dc.Standards())

	// A local specifier shadows the program level one.
	stream.Descriptors.Add(pdsDescriptor(PDSNorDig))
	stream.Descriptors.Add(NewDescriptor(0x83, []byte{0xbb}))
	dc.SetCurrentDescriptorList(stream.Descriptors, 3)
	assert.Equal(t, PDSNorDig, dc.PDS())
}

func TestContextRawForwardScanLastWins(t *testing.T) {
	area := append(pdsDescriptor(PDSEACEM).Content(), NewDescriptor(0x83, []byte{0xaa}).Content()...)
	area = append(area, pdsDescriptor(PDSNorDig).Content()...)

	dc := NewDescriptorContext(nil, TableIDNull, StandardsNone)
	dc.SetCurrentRawDescriptorList(area)
	assert.Equal(t, PDSNorDig, dc.PDS())
}

func TestContextRawTruncatedAreaStopsScan(t *testing.T) {
	area := append(pdsDescriptor(PDSEACEM).Content(), 0x83, 0x10, 0xaa)

	dc := NewDescriptorContext(nil, TableIDNull, StandardsNone)
	dc.SetCurrentRawDescriptorList(area)
	assert.Equal(t, PDSEACEM, dc.PDS())
}

func TestContextRawTopLevelFallback(t *testing.T) {
	dc := NewDescriptorContext(nil, TableIDNull, StandardsNone)
	dc.SetTopLevelRawDescriptorList(pdsDescriptor(PDSEACEM).Content())
	dc.SetCurrentRawDescriptorList(NewDescriptor(0x83, []byte{0xaa}).Content())
	assert.Equal(t, PDSEACEM, dc.PDS())
}

func TestContextRegIDScanPDSCapture(t *testing.T) {
	top := append(regDescriptor(REGIDGA94).Content(), pdsDescriptor(PDSEACEM).Content()...)
	current := append(regDescriptor(REGIDCUEI).Content(), pdsDescriptor(PDSNorDig).Content()...)

	dc := NewDescriptorContext(nil, TableIDNull, StandardsNone)
	dc.SetTopLevelRawDescriptorList(top)
	dc.SetCurrentRawDescriptorList(current)

	// The current-level scan captures its own specifier for the later
	// resolution; the top-level specifier never wins over it.
	assert.Equal(t, []REGID{REGIDGA94, REGIDCUEI}, dc.REGIDs())
	assert.Equal(t, PDSNorDig, dc.PDS())

	// Without a current-level specifier the top-level one still applies,
	// through the fallback scan rather than through the cache.
	dc.SetCurrentRawDescriptorList(regDescriptor(REGIDCUEI).Content())
	assert.Equal(t, []REGID{REGIDGA94, REGIDCUEI}, dc.REGIDs())
	assert.Equal(t, PDSEACEM, dc.PDS())
}

func TestContextMoveRawDescriptorListToTop(t *testing.T) {
	dc := NewDescriptorContext(nil, TableIDNull, StandardsNone)
	dc.SetCurrentRawDescriptorList(append(regDescriptor(REGIDGA94).Content(), pdsDescriptor(PDSEACEM).Content()...))
	assert.Equal(t, []REGID{REGIDGA94}, dc.REGIDs())

	dc.MoveRawDescriptorListToTop()
	dc.SetCurrentRawDescriptorList(regDescriptor(REGIDCUEI).Content())

	assert.Equal(t, []REGID{REGIDGA94, REGIDCUEI}, dc.REGIDs())
	assert.Equal(t, PDSEACEM, dc.PDS())
}

func TestContextDefaultSubstitution(t *testing.T) {
	ctx := &SignalContext{PDS: PDSEACEM}
	dc := NewDescriptorContextForList(ctx, NewDescriptorList(nil), 0)

	// Nothing in the list, the context default applies.
	assert.Equal(t, PDSEACEM, dc.PDS())
}
