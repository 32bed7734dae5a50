package packet

import "strings"

// ParseMessage decodes a complete DNS message from b, starting at the
// current cursor (normally 0, for a freshly loaded datagram).
//
// Section counts are taken from the header as they stand. The buffer does
// not record how long the loaded datagram was, so a count that outruns the
// datagram is not detected: the zero padding after it parses as records
// with an empty owner name, type 0 and no rdata. Only a count that runs
// past BufferSize fails, with ErrUnexpectedEOF or ErrMalformedPointer.
func ParseMessage(b *Buffer) (Message, error) {
	var m Message

	h, err := ParseHeader(b)
	if err != nil {
		return m, err
	}
	m.Header = h

	m.Question = make([]Question, 0, h.QDCount)
	for i := uint16(0); i < h.QDCount; i++ {
		q, err := ParseQuestion(b)
		if err != nil {
			return m, err
		}
		m.Question = append(m.Question, q)
	}

	m.Answer, err = parseRRSet(b, h.ANCount)
	if err != nil {
		return m, err
	}
	m.Authority, err = parseRRSet(b, h.NSCount)
	if err != nil {
		return m, err
	}
	m.Additional, err = parseRRSet(b, h.ARCount)
	if err != nil {
		return m, err
	}

	return m, nil
}

func parseRRSet(b *Buffer, count uint16) ([]Record, error) {
	rrs := make([]Record, 0, count)
	for i := uint16(0); i < count; i++ {
		r, err := ParseRecord(b)
		if err != nil {
			return rrs, err
		}
		rrs = append(rrs, r)
	}
	return rrs, nil
}

// Marshal encodes m into b, starting at the current cursor. The header's
// section-count fields are overwritten from the actual slice lengths before
// the header is written, so a caller never has to keep them in sync by hand.
func (m Message) Marshal(b *Buffer) error {
	h := m.Header
	h.QDCount = uint16(len(m.Question))
	h.ANCount = uint16(len(m.Answer))
	h.NSCount = uint16(len(m.Authority))
	h.ARCount = uint16(len(m.Additional))

	if err := WriteHeader(b, h); err != nil {
		return err
	}
	for _, q := range m.Question {
		if err := WriteQuestion(b, q); err != nil {
			return err
		}
	}
	for _, r := range m.Answer {
		if err := WriteRecord(b, r); err != nil {
			return err
		}
	}
	for _, r := range m.Authority {
		if err := WriteRecord(b, r); err != nil {
			return err
		}
	}
	for _, r := range m.Additional {
		if err := WriteRecord(b, r); err != nil {
			return err
		}
	}
	return nil
}

// FirstA returns the first A-record address found in the answer section,
// used by the resolver once a referral chain bottoms out in a successful
// answer.
func (m Message) FirstA() ([4]byte, bool) {
	for _, r := range m.Answer {
		if addr, ok := r.IPv4(); ok {
			return addr, true
		}
	}
	return [4]byte{}, false
}

// NSFor returns the NS-record target names in the authority section whose
// owner is qname itself or any enclosing suffix of it — every matching
// delegation level, not just the closest one, matching the original
// get_ns's full-suffix-chain behavior. Matching is label-wise and
// case-insensitive, since ReadName already lowercases decoded names.
func (m Message) NSFor(qname string) []string {
	qname = strings.ToLower(strings.TrimSuffix(qname, "."))
	var names []string

	for _, r := range m.Authority {
		if r.Type != TypeNS {
			continue
		}
		owner := strings.ToLower(strings.TrimSuffix(r.Name, "."))
		if !isSuffixOrEqual(qname, owner) {
			continue
		}
		names = append(names, r.Name2)
	}
	return names
}

func isSuffixOrEqual(qname, owner string) bool {
	if owner == "" {
		return true // root
	}
	if qname == owner {
		return true
	}
	return strings.HasSuffix(qname, "."+owner)
}

// ResolvedNS returns the glue address for nsName found in the additional
// section, if the referral response carried it directly.
func (m Message) ResolvedNS(nsName string) ([4]byte, bool) {
	nsName = strings.ToLower(strings.TrimSuffix(nsName, "."))
	for _, r := range m.Additional {
		if r.Type != TypeA {
			continue
		}
		if strings.ToLower(strings.TrimSuffix(r.Name, ".")) == nsName {
			return r.A, true
		}
	}
	return [4]byte{}, false
}

// UnresolvedNS returns the first NS target in NSFor(qname) that has no glue
// in the additional section, requiring a side lookup before it can be
// queried.
func (m Message) UnresolvedNS(qname string) (string, bool) {
	for _, ns := range m.NSFor(qname) {
		if _, ok := m.ResolvedNS(ns); !ok {
			return ns, true
		}
	}
	return "", false
}
