package packet

import "testing"

func TestMessageRoundtripQuery(t *testing.T) {
	m := Message{
		Header: Header{ID: 0xBEEF, RD: true, Opcode: OpcodeQuery, Rcode: RcodeNoError},
		Question: []Question{
			{Name: "example.com", Type: TypeA, Class: ClassIN},
		},
	}

	b := NewBuffer()
	if err := m.Marshal(b); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	end := b.Pos()

	b.Seek(0)
	got, err := ParseMessage(b)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if b.Pos() != end {
		t.Fatalf("cursor after parse = %d, want %d", b.Pos(), end)
	}

	if got.Header.ID != m.Header.ID || !got.Header.RD {
		t.Errorf("header = %+v", got.Header)
	}
	if len(got.Question) != 1 || got.Question[0].Name != "example.com" {
		t.Fatalf("question = %+v", got.Question)
	}
}

// TestMessageRoundtripReferral mirrors spec.md scenario: a referral response
// carrying NS records in authority plus A glue in additional.
func TestMessageRoundtripReferral(t *testing.T) {
	m := Message{
		Header: Header{ID: 1, QR: true, Rcode: RcodeNoError},
		Question: []Question{
			{Name: "www.example.com", Type: TypeA, Class: ClassIN},
		},
		Authority: []Record{
			{Name: "example.com", Type: TypeNS, Class: ClassIN, TTL: 172800, Name2: "a.iana-servers.net"},
			{Name: "example.com", Type: TypeNS, Class: ClassIN, TTL: 172800, Name2: "b.iana-servers.net"},
		},
		Additional: []Record{
			{Name: "a.iana-servers.net", Type: TypeA, Class: ClassIN, TTL: 172800, A: [4]byte{199, 43, 135, 53}},
		},
	}

	b := NewBuffer()
	if err := m.Marshal(b); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b.Seek(0)
	got, err := ParseMessage(b)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	names := got.NSFor("www.example.com")
	if len(names) != 2 {
		t.Fatalf("NSFor = %v, want 2 entries", names)
	}

	if addr, ok := got.ResolvedNS("a.iana-servers.net"); !ok || addr != [4]byte{199, 43, 135, 53} {
		t.Fatalf("ResolvedNS = %v, %v", addr, ok)
	}

	ns, ok := got.UnresolvedNS("www.example.com")
	if !ok || ns != "b.iana-servers.net" {
		t.Fatalf("UnresolvedNS = %q, %v, want b.iana-servers.net", ns, ok)
	}
}

// TestMessageNSForIncludesAllSuffixLevels covers a referral response naming
// NS records at more than one enclosing owner level (e.g. a "com" cut and an
// "example.com" cut both present in the same authority section) — NSFor must
// return every matching level, not just the most specific one.
func TestMessageNSForIncludesAllSuffixLevels(t *testing.T) {
	m := Message{
		Authority: []Record{
			{Name: "com", Type: TypeNS, Class: ClassIN, Name2: "a.gtld-servers.net"},
			{Name: "example.com", Type: TypeNS, Class: ClassIN, Name2: "a.iana-servers.net"},
			{Name: "example.com", Type: TypeNS, Class: ClassIN, Name2: "b.iana-servers.net"},
		},
	}

	names := m.NSFor("www.example.com")
	if len(names) != 3 {
		t.Fatalf("NSFor = %v, want 3 entries across both owner levels", names)
	}

	want := map[string]bool{"a.gtld-servers.net": true, "a.iana-servers.net": true, "b.iana-servers.net": true}
	for _, n := range names {
		if !want[n] {
			t.Errorf("unexpected NS name %q", n)
		}
		delete(want, n)
	}
	if len(want) != 0 {
		t.Errorf("missing NS names: %v", want)
	}
}

func TestMessageFirstA(t *testing.T) {
	m := Message{
		Answer: []Record{
			{Name: "example.com", Type: TypeCNAME, Class: ClassIN, Name2: "alias.example.com"},
			{Name: "alias.example.com", Type: TypeA, Class: ClassIN, A: [4]byte{10, 0, 0, 1}},
		},
	}
	addr, ok := m.FirstA()
	if !ok || addr != [4]byte{10, 0, 0, 1} {
		t.Fatalf("FirstA = %v, %v", addr, ok)
	}
}

// TestMessageSectionCountSync verifies Marshal overwrites stale header
// counts from the actual slice lengths rather than trusting the caller.
func TestMessageSectionCountSync(t *testing.T) {
	m := Message{
		Header:   Header{ID: 1, QDCount: 99}, // deliberately wrong
		Question: []Question{{Name: "example.com", Type: TypeA, Class: ClassIN}},
	}
	b := NewBuffer()
	if err := m.Marshal(b); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b.Seek(0)
	got, err := ParseMessage(b)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if got.Header.QDCount != 1 {
		t.Errorf("QDCount = %d, want 1", got.Header.QDCount)
	}
}
