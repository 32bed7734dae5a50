// Package packet implements the RFC 1035 DNS wire format: a fixed 512-octet
// datagram buffer, the header/question/record codecs built on top of it,
// and the message assembler/disassembler the resolver drives.
package packet

import "errors"

const (
	// BufferSize is the fixed datagram size this codec operates over.
	// Non-goal: EDNS(0) / message sizes above 512 bytes are not supported.
	BufferSize = 512

	// MaxJumps bounds the number of compression-pointer hops read_name will
	// follow before giving up. RFC 1035 doesn't fix this; 5 is the hard cap
	// this implementation enforces.
	MaxJumps = 5

	// MaxLabelLength is the per-label octet cap (RFC 1035 §3.1).
	MaxLabelLength = 63

	// MaxNameLength is the wire-form octet cap for a name, length prefixes
	// and terminator included (RFC 1035 §3.1).
	MaxNameLength = 255
)

// Record type codes (RFC 1035 §3.2.2, RFC 3596, RFC 2782, RFC 6844).
const (
	TypeA     uint16 = 1
	TypeNS    uint16 = 2
	TypeCNAME uint16 = 5
	TypeSOA   uint16 = 6
	TypePTR   uint16 = 12
	TypeMX    uint16 = 15
	TypeTXT   uint16 = 16
	TypeAAAA  uint16 = 28
	TypeSRV   uint16 = 33
	TypeCAA   uint16 = 257
)

// Class codes (RFC 1035 §3.2.4 / §3.2.5).
const (
	ClassIN  uint16 = 1
	ClassCH  uint16 = 3
	ClassHS  uint16 = 4
	ClassANY uint16 = 255
)

// Opcode values (RFC 1035 §4.1.1, RFC 1996, RFC 2136).
const (
	OpcodeQuery  uint8 = 0
	OpcodeIQuery uint8 = 1
	OpcodeStatus uint8 = 2
	OpcodeNotify uint8 = 4
	OpcodeUpdate uint8 = 5
)

// Response codes (RFC 1035 §4.1.1, RFC 2136).
const (
	RcodeNoError  uint8 = 0
	RcodeFormErr  uint8 = 1
	RcodeServFail uint8 = 2
	RcodeNXDomain uint8 = 3
	RcodeNotImp   uint8 = 4
	RcodeRefused  uint8 = 5
	RcodeYXDomain uint8 = 6
	RcodeYXRRSet  uint8 = 7
	RcodeNXRRSet  uint8 = 8
	RcodeNotAuth  uint8 = 9
	RcodeNotZone  uint8 = 10
)

var (
	// ErrOverflow is returned when a write would advance the cursor past
	// BufferSize.
	ErrOverflow = errors.New("packet: buffer overflow")

	// ErrUnexpectedEOF is returned when a read would advance the cursor past
	// BufferSize.
	ErrUnexpectedEOF = errors.New("packet: unexpected end of buffer")

	// ErrInvalidLabel is returned when write_name is asked to encode a label
	// longer than MaxLabelLength.
	ErrInvalidLabel = errors.New("packet: label exceeds 63 octets")

	// ErrExceededJumpLimit is returned when read_name would need more than
	// MaxJumps compression-pointer hops.
	ErrExceededJumpLimit = errors.New("packet: exceeded compression jump limit")

	// ErrMalformedPointer is returned when a compression pointer targets an
	// offset outside the buffer.
	ErrMalformedPointer = errors.New("packet: malformed compression pointer")

	// ErrNameTooLong is returned when a decoded or encoded name would exceed
	// MaxNameLength octets on the wire.
	ErrNameTooLong = errors.New("packet: name exceeds 255 octets")

	// ErrUnknownOpcode is returned by the header codec on parse when the
	// opcode nibble doesn't match a known value.
	ErrUnknownOpcode = errors.New("packet: unknown opcode")

	// ErrUnknownRcode is returned by the header codec on parse when the
	// rcode nibble doesn't match a known value.
	ErrUnknownRcode = errors.New("packet: unknown rcode")

	// ErrSectionCountMismatch is returned when a record's rdata parser does
	// not consume exactly rdlength octets, including a CAA tag length that
	// exceeds the rdata. Section counts themselves are not checked against
	// the datagram length (see ParseMessage).
	ErrSectionCountMismatch = errors.New("packet: section count exceeds remaining buffer")
)

// Header is the 12-octet fixed DNS message header (RFC 1035 §4.1.1).
type Header struct {
	ID uint16

	QR     bool
	Opcode uint8
	AA     bool
	TC     bool
	RD     bool
	RA     bool
	Z      bool
	AD     bool
	CD     bool
	Rcode  uint8

	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Question is a single entry of a message's question section.
type Question struct {
	Name   string
	Type   uint16
	Class  uint16
}

// Record is a single resource record: a shared preamble plus a type-tagged
// rdata payload. Only the payload fields for Type are meaningful (MX and
// SRV use their own struct plus Name2); UNKNOWN records carry no rdata at
// all (it is dropped on parse).
type Record struct {
	Name  string
	Type  uint16
	Class uint16
	TTL   uint32

	// Populated depending on Type; record.go's IPv4 and IPv6 accessors read
	// the address fields with a type check.
	A     [4]byte  // TypeA
	AAAA  [16]byte // TypeAAAA
	Name2 string   // NS/CNAME/PTR target, MX exchange, SRV target
	MX    MXData
	SOA   SOAData
	SRV   SRVData
	TXT   []byte // TypeTXT: raw rdata, 8-bit clean
	CAA   CAAData
}

// MXData is the rdata of an MX record.
type MXData struct {
	Preference uint16
}

// SOAData is the rdata of an SOA record.
type SOAData struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// SRVData is the rdata of an SRV record, minus its target name (carried in
// Record.Name2).
type SRVData struct {
	Priority uint16
	Weight   uint16
	Port     uint16
}

// CAAData is the rdata of a CAA record.
type CAAData struct {
	Flags uint8
	Tag   string
	Value []byte
}

// Message is a complete DNS packet: the header plus its four sections.
type Message struct {
	Header     Header
	Question   []Question
	Answer     []Record
	Authority  []Record
	Additional []Record
}
