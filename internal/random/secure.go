// Package random generates DNS transaction IDs and source ports for
// outbound queries.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"
)

// idState is folded into every call to TransactionID so that two calls
// landing in the same microsecond still diverge.
var idState uint64 = uint64(time.Now().UnixNano())

// TransactionID derives a 16-bit DNS transaction ID from the current time
// via an xorshift mix, the scheme the upstream resolver this codec was
// modeled on uses for its packet IDs. It is not cryptographically random;
// spoof resistance for in-flight queries comes from internal/antispoof, not
// from transaction-ID unpredictability alone.
func TransactionID() uint16 {
	x := atomic.AddUint64(&idState, uint64(time.Now().UnixNano()))
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	atomic.StoreUint64(&idState, x)
	return uint16(x)
}

// SourcePort generates a cryptographically random ephemeral source port in
// the range [32768, 61000). Nothing else in this module calls it: worker
// outbound sockets are bound to an OS-assigned port.
func SourcePort() uint16 {
	const (
		minPort   = 32768
		portRange = 61000 - 32768
	)

	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}

	offset := binary.BigEndian.Uint32(buf[:]) % portRange
	return uint16(minPort + offset)
}
