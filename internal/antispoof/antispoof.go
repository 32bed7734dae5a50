// Package antispoof computes a keyed fingerprint for an in-flight upstream
// query, used to reject a response that doesn't match what was actually
// sent even though its transaction ID and source address line up.
//
// The technique is SipHash-2-4 keying lifted from RFC 7873 DNS Cookies, but
// rehomed: there is no EDNS(0) OPT record carrying this over the wire (this
// resolver never negotiates EDNS), so the fingerprint is computed on both
// ends of a single query/response exchange purely in memory, the same way a
// client cookie and server cookie would be compared, without ever touching
// the packet itself.
package antispoof

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/dchest/siphash"
)

const secretRotationInterval = 24 * time.Hour

// Guard generates and checks per-query fingerprints.
type Guard struct {
	mu             sync.RWMutex
	currentSecret  [16]byte
	previousSecret [16]byte
}

// NewGuard creates a Guard seeded with a fresh random secret.
func NewGuard() (*Guard, error) {
	g := &Guard{}
	if err := g.rotate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Guard) rotate() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.previousSecret = g.currentSecret
	_, err := rand.Read(g.currentSecret[:])
	return err
}

// RotatePeriodically rotates the secret on a fixed interval until stop is
// closed. The previous secret stays valid for one more interval so
// in-flight queries spanning a rotation aren't rejected.
func (g *Guard) RotatePeriodically(stop <-chan struct{}) {
	ticker := time.NewTicker(secretRotationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.rotate()
		case <-stop:
			return
		}
	}
}

// Fingerprint keys on the upstream nameserver address, the transaction ID
// assigned to the query, and the question name/type/class, so a response
// can be checked against exactly the query it claims to answer.
func (g *Guard) Fingerprint(nsAddr string, txID uint16, qname string, qtype, qclass uint16) uint64 {
	g.mu.RLock()
	secret := g.currentSecret
	g.mu.RUnlock()
	return fingerprint(secret, nsAddr, txID, qname, qtype, qclass)
}

// Verify reports whether fp matches the fingerprint computed for the given
// query parameters, under either the current or the previous secret (so a
// rotation mid-flight doesn't spuriously reject a legitimate response).
func (g *Guard) Verify(fp uint64, nsAddr string, txID uint16, qname string, qtype, qclass uint16) bool {
	g.mu.RLock()
	current, previous := g.currentSecret, g.previousSecret
	g.mu.RUnlock()

	if fp == fingerprint(current, nsAddr, txID, qname, qtype, qclass) {
		return true
	}
	return fp == fingerprint(previous, nsAddr, txID, qname, qtype, qclass)
}

func fingerprint(secret [16]byte, nsAddr string, txID uint16, qname string, qtype, qclass uint16) uint64 {
	h := siphash.New(secret[:])
	h.Write([]byte(nsAddr))
	var txBuf [2]byte
	binary.BigEndian.PutUint16(txBuf[:], txID)
	h.Write(txBuf[:])
	h.Write([]byte(qname))
	var typeClass [4]byte
	binary.BigEndian.PutUint16(typeClass[:2], qtype)
	binary.BigEndian.PutUint16(typeClass[2:], qclass)
	h.Write(typeClass[:])
	return h.Sum64()
}
