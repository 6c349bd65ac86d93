package psisi

type DescriptorTag uint8

// Descriptor tags
// Chapter: 6.1 | Link: https://www.etsi.org/deliver/etsi_en/300400_300499/300468/01.15.01_60/en_300468v011501p.pdf
// MPEG tags: Chapter 2.6 | ISO/IEC 13818-1
const (
	DescriptorTagRegistration            DescriptorTag = 0x05
	DescriptorTagISO639Language          DescriptorTag = 0x0a
	DescriptorTagMPEGExtension           DescriptorTag = 0x3f
	DescriptorTagNetworkName             DescriptorTag = 0x40
	DescriptorTagVBITeletext             DescriptorTag = 0x46
	DescriptorTagShortEvent              DescriptorTag = 0x4d
	DescriptorTagExtendedEvent           DescriptorTag = 0x4e
	DescriptorTagComponent               DescriptorTag = 0x50
	DescriptorTagStreamIdentifier        DescriptorTag = 0x52
	DescriptorTagTeletext                DescriptorTag = 0x56
	DescriptorTagSubtitling              DescriptorTag = 0x59
	DescriptorTagMultilingualNetworkName DescriptorTag = 0x5b
	DescriptorTagMultilingualBouquetName DescriptorTag = 0x5c
	DescriptorTagMultilingualServiceName DescriptorTag = 0x5d
	DescriptorTagMultilingualComponent   DescriptorTag = 0x5e
	DescriptorTagPrivateDataSpecifier    DescriptorTag = 0x5f
	DescriptorTagDVBExtension            DescriptorTag = 0x7f
	DescriptorTagLogicalChannelNumber    DescriptorTag = 0x83 // EACEM private
	DescriptorTagATSCCaptionService      DescriptorTag = 0x86
	DescriptorTagISDBAudioComponent      DescriptorTag = 0xc4
	DescriptorTagISDBDataContent         DescriptorTag = 0xc7
)

// PDS is a DVB private data specifier
type PDS uint32

// Common private data specifiers
// Chapter: 5.10 | Link: https://www.dvbservices.com/identifiers/private_data_spec_id
const (
	PDSEACEM     PDS = 0x00000028
	PDSNorDig    PDS = 0x00000029
	PDSCanalPlus PDS = 0x000000c0
	PDSOfcom     PDS = 0x0000233a
	PDSATSC      PDS = 0x41545343 // "ATSC", placeholder specifier for ATSC descriptors
	PDSISDB      PDS = 0x49534442 // "ISDB", placeholder specifier for ISDB descriptors
	PDSNull      PDS = 0xffffffff
)

// REGID is an MPEG registration identifier, as assigned by the SMPTE
// registration authority through a registration_descriptor.
type REGID uint32

const (
	REGIDAC3  REGID = 0x41432d33 // "AC-3"
	REGIDCUEI REGID = 0x43554549 // "CUEI", SCTE-35 splice information
	REGIDGA94 REGID = 0x47413934 // "GA94", ATSC
	REGIDHDMV REGID = 0x48444d56 // "HDMV", BluRay
	REGIDKLVA REGID = 0x4b4c5641 // "KLVA"
	REGIDNull REGID = 0xffffffff
)

type TableID uint8

// Table ids
// Chapter: 5.1.3 | Link: https://www.etsi.org/deliver/etsi_en/300400_300499/300468/01.15.01_60/en_300468v011501p.pdf
const (
	TableIDPAT       TableID = 0x00
	TableIDCAT       TableID = 0x01
	TableIDPMT       TableID = 0x02
	TableIDNITActual TableID = 0x40
	TableIDNITOther  TableID = 0x41
	TableIDSDTActual TableID = 0x42
	TableIDSDTOther  TableID = 0x46
	TableIDBAT       TableID = 0x4a
	TableIDEITStart  TableID = 0x4e
	TableIDEITEnd    TableID = 0x6f
	TableIDTDT       TableID = 0x70
	TableIDTOT       TableID = 0x73
	TableIDNull      TableID = 0xff
)

// CASID is a conditional access system id
type CASID uint16

const CASIDNull CASID = 0xffff

// PID is a 13-bit packet identifier
type PID uint16

const PIDNull PID = 0x1fff

// Standards is a bit mask of broadcast standards, used to disambiguate
// descriptor and table semantics when tag values collide across standards.
type Standards uint8

const (
	StandardsNone Standards = 0
	StandardsMPEG Standards = 1 << 0
	StandardsDVB  Standards = 1 << 1
	StandardsSCTE Standards = 1 << 2
	StandardsATSC Standards = 1 << 3
	StandardsISDB Standards = 1 << 4
)

// Teletext types carrying subtitles
// Chapter: 6.2.43 | Link: https://www.etsi.org/deliver/etsi_en/300400_300499/300468/01.15.01_60/en_300468v011501p.pdf
const (
	TeletextTypeSubtitle                   = 0x02
	TeletextTypeSubtitleForHearingImpaired = 0x05
)

// SignalContext carries the caller-supplied resolution defaults which the
// original tool keeps in a process-wide preference object: active standards,
// a default private data specifier and default registration ids. A zero
// value means "no defaults".
type SignalContext struct {
	Standards Standards
	PDS       PDS
	RegIDs    []REGID
	CASID     CASID
}

// ActualPDS substitutes the context-wide default specifier when none was
// found in the stream.
func (c *SignalContext) ActualPDS(pds PDS) PDS {
	if c != nil && (pds == 0 || pds == PDSNull) && c.PDS != 0 {
		return c.PDS
	}
	return pds
}

func (c *SignalContext) standards() Standards {
	if c == nil {
		return StandardsNone
	}
	return c.Standards
}

func (c *SignalContext) regIDs() []REGID {
	if c == nil {
		return nil
	}
	return c.RegIDs
}

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
