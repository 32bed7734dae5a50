package pool

import (
	"testing"

	"github.com/specCon18/Speculator-DNS/internal/packet"
)

func TestGetBufferReset(t *testing.T) {
	b := GetBuffer()
	if b == nil {
		t.Fatal("GetBuffer() returned nil")
	}

	b.WriteU16(0x1234)
	PutBuffer(b)

	b2 := GetBuffer()
	if b2.Pos() != 0 {
		t.Errorf("buffer not reset: pos = %d, want 0", b2.Pos())
	}
	v, err := b2.Peek(0)
	if err != nil || v != 0 {
		t.Errorf("buffer not zeroed: byte 0 = %d, %v", v, err)
	}
}

func TestPutBufferNil(t *testing.T) {
	PutBuffer(nil) // must not panic
}

func TestResetPool(t *testing.T) {
	b := GetBuffer()
	ResetPool()

	b2 := GetBuffer()
	if b2 == nil {
		t.Error("GetBuffer() failed after ResetPool")
	}

	PutBuffer(b)
	PutBuffer(b2)
}

func TestBufferPoolRoundtripsMessage(t *testing.T) {
	b := GetBuffer()
	defer PutBuffer(b)

	m := packet.Message{
		Header:   packet.Header{ID: 7, RD: true},
		Question: []packet.Question{{Name: "example.com", Type: packet.TypeA, Class: packet.ClassIN}},
	}
	if err := m.Marshal(b); err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if b.Pos() == 0 {
		t.Error("expected non-zero cursor after marshal")
	}
}

func BenchmarkBufferPool(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := GetBuffer()
		PutBuffer(buf)
	}
}

func BenchmarkBufferNew(b *testing.B) {
	for i := 0; i < b.N; i++ {
		packet.NewBuffer()
	}
}
