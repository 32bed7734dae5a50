package packet

// ParseHeader decodes the fixed 12-octet DNS header at the buffer's current
// cursor. An unrecognized opcode or rcode is a parse error (FormErr
// semantics at the resolver level), per RFC 1035 §4.1.1.
func ParseHeader(b *Buffer) (Header, error) {
	var h Header

	id, err := b.ReadU16()
	if err != nil {
		return h, err
	}
	h.ID = id

	flags1, err := b.ReadU16()
	if err != nil {
		return h, err
	}

	b0 := byte(flags1 >> 8)
	b1 := byte(flags1)

	h.QR = b0&0x80 != 0
	h.Opcode = (b0 >> 3) & 0x0F
	h.AA = b0&0x04 != 0
	h.TC = b0&0x02 != 0
	h.RD = b0&0x01 != 0

	h.RA = b1&0x80 != 0
	h.Z = b1&0x40 != 0
	h.AD = b1&0x20 != 0
	h.CD = b1&0x10 != 0
	h.Rcode = b1 & 0x0F

	if !validOpcode(h.Opcode) {
		return h, ErrUnknownOpcode
	}
	if !validRcode(h.Rcode) {
		return h, ErrUnknownRcode
	}

	qd, err := b.ReadU16()
	if err != nil {
		return h, err
	}
	an, err := b.ReadU16()
	if err != nil {
		return h, err
	}
	ns, err := b.ReadU16()
	if err != nil {
		return h, err
	}
	ar, err := b.ReadU16()
	if err != nil {
		return h, err
	}
	h.QDCount, h.ANCount, h.NSCount, h.ARCount = qd, an, ns, ar

	return h, nil
}

// WriteHeader emits a 12-octet DNS header. The caller is responsible for
// synchronizing the four count fields with the actual section lengths
// before calling this (see Message.Marshal).
func WriteHeader(b *Buffer, h Header) error {
	if err := b.WriteU16(h.ID); err != nil {
		return err
	}

	var b0, b1 byte
	if h.QR {
		b0 |= 0x80
	}
	b0 |= (h.Opcode & 0x0F) << 3
	if h.AA {
		b0 |= 0x04
	}
	if h.TC {
		b0 |= 0x02
	}
	if h.RD {
		b0 |= 0x01
	}

	if h.RA {
		b1 |= 0x80
	}
	if h.Z {
		b1 |= 0x40
	}
	if h.AD {
		b1 |= 0x20
	}
	if h.CD {
		b1 |= 0x10
	}
	b1 |= h.Rcode & 0x0F

	if err := b.WriteU16(uint16(b0)<<8 | uint16(b1)); err != nil {
		return err
	}

	if err := b.WriteU16(h.QDCount); err != nil {
		return err
	}
	if err := b.WriteU16(h.ANCount); err != nil {
		return err
	}
	if err := b.WriteU16(h.NSCount); err != nil {
		return err
	}
	return b.WriteU16(h.ARCount)
}

func validOpcode(op uint8) bool {
	switch op {
	case OpcodeQuery, OpcodeIQuery, OpcodeStatus, OpcodeNotify, OpcodeUpdate:
		return true
	default:
		return false
	}
}

func validRcode(rc uint8) bool {
	switch rc {
	case RcodeNoError, RcodeFormErr, RcodeServFail, RcodeNXDomain, RcodeNotImp,
		RcodeRefused, RcodeYXDomain, RcodeYXRRSet, RcodeNXRRSet, RcodeNotAuth, RcodeNotZone:
		return true
	default:
		return false
	}
}
