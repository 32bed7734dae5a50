package server

import (
	"net"
	"testing"
	"time"

	"github.com/specCon18/Speculator-DNS/internal/packet"
	"github.com/specCon18/Speculator-DNS/internal/pool"
	"github.com/specCon18/Speculator-DNS/internal/resolver"
)

// startFakeNameserver listens on loopback and answers every query with a
// single A record for whatever name was asked, echoing the transaction ID.
func startFakeNameserver(t *testing.T, ip [4]byte) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("listen fake nameserver: %v", err)
	}

	go func() {
		buf := make([]byte, 512)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}

			in := pool.GetBuffer()
			in.Load(buf[:n])
			req, err := packet.ParseMessage(in)
			pool.PutBuffer(in)
			if err != nil || len(req.Question) == 0 {
				continue
			}

			resp := packet.Message{
				Header: packet.Header{ID: req.Header.ID, QR: true},
				Question: req.Question,
				Answer: []packet.Record{{
					Name: req.Question[0].Name, Type: packet.TypeA, Class: packet.ClassIN,
					TTL: 60, A: ip,
				}},
			}
			out := pool.GetBuffer()
			resp.Marshal(out)
			conn.WriteToUDP(out.Bytes()[:out.Pos()], addr)
			pool.PutBuffer(out)
		}
	}()

	return conn
}

func TestServerResolvesClientQueryEndToEnd(t *testing.T) {
	want := [4]byte{203, 0, 113, 9}
	fake := startFakeNameserver(t, want)
	defer fake.Close()

	cfg := DefaultConfig()
	cfg.UDPAddr = "127.0.0.1:0"
	cfg.ResolverConfig = resolver.Config{
		Bootstrap:     []string{fake.LocalAddr().String()},
		QueryTimeout:  time.Second,
		MaxIterations: 4,
	}

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	client, err := net.Dial("udp", srv.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial server: %v", err)
	}
	defer client.Close()

	q := packet.Message{
		Header:   packet.Header{ID: 0x1234, RD: true},
		Question: []packet.Question{{Name: "example.com", Type: packet.TypeA, Class: packet.ClassIN}},
	}
	out := pool.GetBuffer()
	if err := q.Marshal(out); err != nil {
		t.Fatalf("marshal query: %v", err)
	}
	if _, err := client.Write(out.Bytes()[:out.Pos()]); err != nil {
		t.Fatalf("write query: %v", err)
	}
	pool.PutBuffer(out)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	in := pool.GetBuffer()
	defer pool.PutBuffer(in)
	in.Load(buf[:n])
	resp, err := packet.ParseMessage(in)
	if err != nil {
		t.Fatalf("parse response: %v", err)
	}

	if resp.Header.ID != 0x1234 {
		t.Errorf("response ID = %x, want 0x1234", resp.Header.ID)
	}
	got, ok := resp.FirstA()
	if !ok || got != want {
		t.Errorf("FirstA = %v, %v; want %v, true", got, ok, want)
	}
}

func TestServerRejectsEmptyQuestion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UDPAddr = "127.0.0.1:0"
	cfg.ResolverConfig.Bootstrap = []string{"127.0.0.1:1"} // unused, no question to resolve

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	client, err := net.Dial("udp", srv.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial server: %v", err)
	}
	defer client.Close()

	q := packet.Message{Header: packet.Header{ID: 0x42}}
	out := pool.GetBuffer()
	q.Marshal(out)
	client.Write(out.Bytes()[:out.Pos()])
	pool.PutBuffer(out)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	in := pool.GetBuffer()
	defer pool.PutBuffer(in)
	in.Load(buf[:n])
	resp, err := packet.ParseMessage(in)
	if err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Header.Rcode != packet.RcodeFormErr {
		t.Errorf("Rcode = %d, want FORMERR", resp.Header.Rcode)
	}
}

func TestServerACLDropsDeniedClient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UDPAddr = "127.0.0.1:0"
	cfg.ACLDefaultAllow = false // deny everyone by default
	cfg.ResolverConfig.Bootstrap = []string{"127.0.0.1:1"}

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	client, err := net.Dial("udp", srv.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial server: %v", err)
	}
	defer client.Close()

	q := packet.Message{
		Header:   packet.Header{ID: 0x99, RD: true},
		Question: []packet.Question{{Name: "example.com", Type: packet.TypeA, Class: packet.ClassIN}},
	}
	out := pool.GetBuffer()
	q.Marshal(out)
	client.Write(out.Bytes()[:out.Pos()])
	pool.PutBuffer(out)

	client.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	buf := make([]byte, 512)
	if _, err := client.Read(buf); err == nil {
		t.Error("expected read timeout, denied client got a response")
	}
}
