package packet

// ParseRecord decodes a single resource record: the shared preamble (owner
// name, type, class, TTL, rdlength) followed by a type-specific rdata
// parser dispatched on the type code.
func ParseRecord(b *Buffer) (Record, error) {
	var r Record

	name, err := b.ReadName()
	if err != nil {
		return r, err
	}
	r.Name = name

	rtype, err := b.ReadU16()
	if err != nil {
		return r, err
	}
	class, err := b.ReadU16()
	if err != nil {
		return r, err
	}
	ttl, err := b.ReadU32()
	if err != nil {
		return r, err
	}
	rdlength, err := b.ReadU16()
	if err != nil {
		return r, err
	}

	r.Type = rtype
	r.Class = class
	r.TTL = ttl

	rdataStart := b.Pos()

	switch rtype {
	case TypeA:
		for i := 0; i < 4; i++ {
			o, err := b.ReadU8()
			if err != nil {
				return r, err
			}
			r.A[i] = o
		}

	case TypeAAAA:
		addr, err := b.ReadU128()
		if err != nil {
			return r, err
		}
		r.AAAA = addr

	case TypeNS, TypeCNAME, TypePTR:
		target, err := b.ReadName()
		if err != nil {
			return r, err
		}
		r.Name2 = target

	case TypeMX:
		pref, err := b.ReadU16()
		if err != nil {
			return r, err
		}
		exchange, err := b.ReadName()
		if err != nil {
			return r, err
		}
		r.MX = MXData{Preference: pref}
		r.Name2 = exchange

	case TypeSOA:
		mname, err := b.ReadName()
		if err != nil {
			return r, err
		}
		rname, err := b.ReadName()
		if err != nil {
			return r, err
		}
		serial, err := b.ReadU32()
		if err != nil {
			return r, err
		}
		refresh, err := b.ReadU32()
		if err != nil {
			return r, err
		}
		retry, err := b.ReadU32()
		if err != nil {
			return r, err
		}
		expire, err := b.ReadU32()
		if err != nil {
			return r, err
		}
		minimum, err := b.ReadU32()
		if err != nil {
			return r, err
		}
		r.SOA = SOAData{
			MName: mname, RName: rname,
			Serial: serial, Refresh: refresh, Retry: retry, Expire: expire, Minimum: minimum,
		}

	case TypeSRV:
		priority, err := b.ReadU16()
		if err != nil {
			return r, err
		}
		weight, err := b.ReadU16()
		if err != nil {
			return r, err
		}
		port, err := b.ReadU16()
		if err != nil {
			return r, err
		}
		target, err := b.ReadName()
		if err != nil {
			return r, err
		}
		r.SRV = SRVData{Priority: priority, Weight: weight, Port: port}
		r.Name2 = target

	case TypeCAA:
		flags, err := b.ReadU8()
		if err != nil {
			return r, err
		}
		tagLen, err := b.ReadU8()
		if err != nil {
			return r, err
		}
		tagBytes, err := b.Range(b.Pos(), int(tagLen))
		if err != nil {
			return r, ErrUnexpectedEOF
		}
		tag := string(tagBytes)
		if err := b.Step(int(tagLen)); err != nil {
			return r, err
		}

		valueLen := int(rdlength) - 2 - int(tagLen)
		if valueLen < 0 {
			return r, ErrSectionCountMismatch
		}
		value, err := b.Range(b.Pos(), valueLen)
		if err != nil {
			return r, ErrUnexpectedEOF
		}
		valueCopy := make([]byte, valueLen)
		copy(valueCopy, value)
		if err := b.Step(valueLen); err != nil {
			return r, err
		}
		r.CAA = CAAData{Flags: flags, Tag: tag, Value: valueCopy}

	case TypeTXT:
		raw, err := b.Range(b.Pos(), int(rdlength))
		if err != nil {
			return r, ErrUnexpectedEOF
		}
		txt := make([]byte, rdlength)
		copy(txt, raw)
		if err := b.Step(int(rdlength)); err != nil {
			return r, err
		}
		r.TXT = txt

	default:
		// UNKNOWN(type_code): opaque rdata is skipped and dropped; only the
		// preamble is retained.
		if err := b.Step(int(rdlength)); err != nil {
			return r, err
		}
	}

	consumed := b.Pos() - rdataStart
	if consumed != int(rdlength) {
		return r, ErrSectionCountMismatch
	}

	return r, nil
}

// WriteRecord emits a single resource record, including the shared
// preamble. For variable-length bodies, the rdlength field cannot be known
// ahead of the body (names aren't pre-measured), so the emitter writes a
// placeholder, records the cursor, writes the body, then rewinds and patches
// rdlength with the measured body length.
func WriteRecord(b *Buffer, r Record) error {
	if err := b.WriteName(r.Name); err != nil {
		return err
	}
	if err := b.WriteU16(r.Type); err != nil {
		return err
	}
	if err := b.WriteU16(r.Class); err != nil {
		return err
	}
	if err := b.WriteU32(r.TTL); err != nil {
		return err
	}

	rdlengthPos := b.Pos()
	if err := b.WriteU16(0); err != nil { // placeholder
		return err
	}
	bodyStart := b.Pos()

	if err := writeRData(b, r); err != nil {
		return err
	}

	bodyEnd := b.Pos()
	rdlength := uint16(bodyEnd - bodyStart)

	if err := b.Seek(rdlengthPos); err != nil {
		return err
	}
	if err := b.WriteU16(rdlength); err != nil {
		return err
	}
	return b.Seek(bodyEnd)
}

func writeRData(b *Buffer, r Record) error {
	switch r.Type {
	case TypeA:
		for _, o := range r.A {
			if err := b.WriteU8(o); err != nil {
				return err
			}
		}
		return nil

	case TypeAAAA:
		return b.WriteU128(r.AAAA)

	case TypeNS, TypeCNAME, TypePTR:
		return b.WriteName(r.Name2)

	case TypeMX:
		if err := b.WriteU16(r.MX.Preference); err != nil {
			return err
		}
		return b.WriteName(r.Name2)

	case TypeSOA:
		if err := b.WriteName(r.SOA.MName); err != nil {
			return err
		}
		if err := b.WriteName(r.SOA.RName); err != nil {
			return err
		}
		if err := b.WriteU32(r.SOA.Serial); err != nil {
			return err
		}
		if err := b.WriteU32(r.SOA.Refresh); err != nil {
			return err
		}
		if err := b.WriteU32(r.SOA.Retry); err != nil {
			return err
		}
		if err := b.WriteU32(r.SOA.Expire); err != nil {
			return err
		}
		return b.WriteU32(r.SOA.Minimum)

	case TypeSRV:
		if err := b.WriteU16(r.SRV.Priority); err != nil {
			return err
		}
		if err := b.WriteU16(r.SRV.Weight); err != nil {
			return err
		}
		if err := b.WriteU16(r.SRV.Port); err != nil {
			return err
		}
		return b.WriteName(r.Name2)

	case TypeCAA:
		if err := b.WriteU8(r.CAA.Flags); err != nil {
			return err
		}
		if err := b.WriteU8(uint8(len(r.CAA.Tag))); err != nil {
			return err
		}
		for i := 0; i < len(r.CAA.Tag); i++ {
			if err := b.WriteU8(r.CAA.Tag[i]); err != nil {
				return err
			}
		}
		for _, o := range r.CAA.Value {
			if err := b.WriteU8(o); err != nil {
				return err
			}
		}
		return nil

	case TypeTXT:
		for _, o := range r.TXT {
			if err := b.WriteU8(o); err != nil {
				return err
			}
		}
		return nil

	default:
		// UNKNOWN(type_code): no rdata was retained on parse, so none is
		// emitted; rdlength comes out as 0.
		return nil
	}
}

// IPv4 returns the A-record address, if this record is of type A.
func (r Record) IPv4() ([4]byte, bool) {
	if r.Type != TypeA {
		return [4]byte{}, false
	}
	return r.A, true
}

// IPv6 returns the AAAA-record address, if this record is of type AAAA.
func (r Record) IPv6() ([16]byte, bool) {
	if r.Type != TypeAAAA {
		return [16]byte{}, false
	}
	return r.AAAA, true
}
