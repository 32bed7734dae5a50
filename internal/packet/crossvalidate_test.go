package packet

import (
	"net"
	"testing"

	"github.com/miekg/dns"
)

// These tests use miekg/dns purely as an independent wire-format oracle: it
// builds a message, we parse the same bytes with our own codec, and compare.
// Nothing in the production path imports miekg/dns; it is a test-only
// dependency that lets a hand-rolled parser be checked against a
// battle-tested one instead of only against itself.

func TestCrossValidateQueryAgainstMiekg(t *testing.T) {
	q := new(dns.Msg)
	q.SetQuestion("example.com.", dns.TypeA)
	q.RecursionDesired = true
	q.Id = 0xCAFE

	raw, err := q.Pack()
	if err != nil {
		t.Fatalf("miekg Pack: %v", err)
	}

	b := NewBuffer()
	b.Load(raw)
	got, err := ParseMessage(b)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	if got.Header.ID != 0xCAFE {
		t.Errorf("ID = %x, want 0xCAFE", got.Header.ID)
	}
	if !got.Header.RD {
		t.Error("RD should be set")
	}
	if len(got.Question) != 1 || got.Question[0].Name != "example.com" {
		t.Fatalf("question = %+v", got.Question)
	}
	if got.Question[0].Type != TypeA {
		t.Errorf("qtype = %d, want TypeA", got.Question[0].Type)
	}
}

func TestCrossValidateResponseWithCompressionAgainstMiekg(t *testing.T) {
	m := new(dns.Msg)
	m.SetQuestion("example.com.", dns.TypeA)
	m.Response = true
	m.Authoritative = true

	rr, err := dns.NewRR("example.com. 300 IN A 192.0.2.7")
	if err != nil {
		t.Fatalf("NewRR: %v", err)
	}
	m.Answer = append(m.Answer, rr)

	raw, err := m.Pack()
	if err != nil {
		t.Fatalf("miekg Pack: %v", err)
	}

	b := NewBuffer()
	b.Load(raw)
	got, err := ParseMessage(b)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	if len(got.Answer) != 1 {
		t.Fatalf("answers = %d, want 1", len(got.Answer))
	}
	addr, ok := got.Answer[0].IPv4()
	if !ok || net.IP(addr[:]).String() != "192.0.2.7" {
		t.Errorf("answer A = %v, ok=%v, want 192.0.2.7", addr, ok)
	}
	if got.Answer[0].Name != "example.com" {
		t.Errorf("answer name = %q, want example.com (decompressed)", got.Answer[0].Name)
	}
}

// TestCrossValidateOurMessageParsesInMiekg checks the emit direction: a
// message we marshal must be readable by miekg/dns too, confirming our
// wire output isn't merely self-consistent.
func TestCrossValidateOurMessageParsesInMiekg(t *testing.T) {
	ours := Message{
		Header: Header{ID: 42, QR: true, RD: true, RA: true, Rcode: RcodeNoError},
		Question: []Question{
			{Name: "example.org", Type: TypeAAAA, Class: ClassIN},
		},
		Answer: []Record{
			{Name: "example.org", Type: TypeAAAA, Class: ClassIN, TTL: 120,
				AAAA: [16]byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}},
		},
	}

	b := NewBuffer()
	if err := ours.Marshal(b); err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	parsed := new(dns.Msg)
	if err := parsed.Unpack(b.Bytes()[:b.Pos()]); err != nil {
		t.Fatalf("miekg Unpack of our output: %v", err)
	}
	if parsed.Id != 42 {
		t.Errorf("miekg parsed ID = %d, want 42", parsed.Id)
	}
	if len(parsed.Answer) != 1 {
		t.Fatalf("miekg parsed answers = %d, want 1", len(parsed.Answer))
	}
	aaaa, ok := parsed.Answer[0].(*dns.AAAA)
	if !ok {
		t.Fatalf("answer type = %T, want *dns.AAAA", parsed.Answer[0])
	}
	if aaaa.AAAA.String() != "2001:db8::1" {
		t.Errorf("AAAA = %s, want 2001:db8::1", aaaa.AAAA.String())
	}
}
