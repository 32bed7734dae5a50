package packet

// ParseQuestion decodes a single question-section entry: qname, qtype,
// qclass. Unknown qtype/qclass codes are preserved verbatim so the entry
// still round-trips byte-for-byte.
func ParseQuestion(b *Buffer) (Question, error) {
	var q Question

	name, err := b.ReadName()
	if err != nil {
		return q, err
	}
	q.Name = name

	qtype, err := b.ReadU16()
	if err != nil {
		return q, err
	}
	qclass, err := b.ReadU16()
	if err != nil {
		return q, err
	}

	q.Type = qtype
	q.Class = qclass
	return q, nil
}

// WriteQuestion emits a single question-section entry.
func WriteQuestion(b *Buffer, q Question) error {
	if err := b.WriteName(q.Name); err != nil {
		return err
	}
	if err := b.WriteU16(q.Type); err != nil {
		return err
	}
	return b.WriteU16(q.Class)
}
