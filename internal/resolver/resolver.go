// Package resolver implements iterative DNS resolution: given a question,
// it walks the referral chain from a bootstrap nameserver down to an
// authoritative answer, the way the upstream resolver this codec was
// modeled on does it, without ever caching a result or delegating to
// another recursive resolver.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/specCon18/Speculator-DNS/internal/antispoof"
	"github.com/specCon18/Speculator-DNS/internal/eventbus"
	"github.com/specCon18/Speculator-DNS/internal/metrics"
	"github.com/specCon18/Speculator-DNS/internal/packet"
	"github.com/specCon18/Speculator-DNS/internal/pool"
	"github.com/specCon18/Speculator-DNS/internal/random"
	"github.com/specCon18/Speculator-DNS/internal/worker"
)

var (
	ErrMaxIterations = errors.New("resolver: max iterations reached")
	ErrNoNameservers = errors.New("resolver: no nameservers available")
	ErrNoQuestion    = errors.New("resolver: no question to resolve")
)

// Bootstrap is the default starting nameserver for a freshly configured
// resolver, matching the single fixed bootstrap address the original
// recursive-lookup routine this package is grounded on.
const Bootstrap = "1.1.1.1:53"

// Config holds resolver configuration.
type Config struct {
	// Bootstrap is the nameserver address(es) iterative resolution starts
	// from. Defaults to []string{Bootstrap}.
	Bootstrap []string

	// QueryTimeout bounds a single upstream round trip. Default 2s.
	QueryTimeout time.Duration

	// MaxIterations bounds how many upstream round trips a single
	// resolution, side lookups included, may make before giving up.
	// Default 16.
	MaxIterations int

	// Bus, if set, receives a TopicReferral publish each time the resolver
	// follows a referral to a new set of nameservers. Optional; nil
	// disables publishing.
	Bus *eventbus.Bus
}

// ReferralEvent is published on Config.Bus's TopicReferral each time
// nextServers picks a next hop, whether from glue or a side lookup.
type ReferralEvent struct {
	Qname   string
	Servers []string
}

// Resolver performs iterative DNS resolution over UDP.
type Resolver struct {
	cfg   Config
	guard *antispoof.Guard
	dial  func(ctx context.Context, addr string) (net.Conn, error)
	bus   *eventbus.Bus
}

// New creates a Resolver.
func New(cfg Config) (*Resolver, error) {
	if len(cfg.Bootstrap) == 0 {
		cfg.Bootstrap = []string{Bootstrap}
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 2 * time.Second
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 16
	}

	guard, err := antispoof.NewGuard()
	if err != nil {
		return nil, fmt.Errorf("resolver: init antispoof guard: %w", err)
	}

	var d net.Dialer
	return &Resolver{
		cfg:   cfg,
		guard: guard,
		bus:   cfg.Bus,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "udp", addr)
		},
	}, nil
}

// Resolve performs iterative resolution for qname/qtype/qclass, starting
// from the configured bootstrap nameservers, and returns a complete
// response message (not yet stamped with the client's transaction ID or
// RD/RA bits — the query handler does that).
//
// A single budget of r.cfg.MaxIterations round trips is shared across this
// call's entire referral chain, including any side lookups nextServers
// issues to resolve an un-glued NS name, so a crafted chain of un-glued
// referrals cannot drive the resolver past the configured cap.
func (r *Resolver) Resolve(ctx context.Context, qname string, qtype, qclass uint16) (packet.Message, error) {
	budget := r.cfg.MaxIterations
	return r.resolve(ctx, qname, qtype, qclass, &budget)
}

func (r *Resolver) resolve(ctx context.Context, qname string, qtype, qclass uint16, budget *int) (packet.Message, error) {
	servers := r.cfg.Bootstrap

	for {
		if *budget <= 0 {
			return packet.Message{}, ErrMaxIterations
		}
		if len(servers) == 0 {
			return packet.Message{}, ErrNoNameservers
		}
		*budget--

		resp, err := r.query(ctx, servers[0], qname, qtype, qclass)
		if err != nil {
			if len(servers) > 1 {
				servers = servers[1:]
				continue
			}
			return packet.Message{}, fmt.Errorf("resolver: all nameservers failed: %w", err)
		}

		if len(resp.Answer) > 0 {
			return resp, nil
		}
		if resp.Header.Rcode == packet.RcodeNXDomain {
			return resp, nil
		}

		next, err := r.nextServers(ctx, resp, qname, budget)
		if err != nil {
			return packet.Message{}, err
		}
		if len(next) == 0 {
			// No referral and no answer: the response is as final as it
			// gets (e.g. NODATA).
			return resp, nil
		}
		servers = next
	}
}

// nextServers extracts the next hop's addresses from a referral response:
// glue addresses straight from the additional section, or a side lookup of
// any NS target that arrived without glue. budget is the same remaining-
// iteration counter the outer resolve loop is drawing from, so a side
// lookup spends from that shared cap rather than getting a fresh one.
func (r *Resolver) nextServers(ctx context.Context, resp packet.Message, qname string, budget *int) ([]string, error) {
	names := resp.NSFor(qname)
	if len(names) == 0 {
		return nil, nil
	}

	var next []string
	for _, ns := range names {
		if addr, ok := resp.ResolvedNS(ns); ok {
			next = append(next, fmt.Sprintf("%s:53", net.IP(addr[:]).String()))
		}
	}
	if len(next) > 0 {
		r.publishReferral(ctx, qname, next)
		return next, nil
	}

	// No glue at all: resolve the first NS name's own A record recursively,
	// drawing from the same budget as the outer delegation walk.
	unresolved, ok := resp.UnresolvedNS(qname)
	if !ok {
		unresolved = names[0]
	}
	if *budget <= 0 {
		return nil, ErrMaxIterations
	}
	side, err := r.resolve(ctx, unresolved, packet.TypeA, packet.ClassIN, budget)
	if err != nil {
		return nil, fmt.Errorf("resolver: side lookup of %s: %w", unresolved, err)
	}
	addr, ok := side.FirstA()
	if !ok {
		return nil, ErrNoNameservers
	}
	next = []string{fmt.Sprintf("%s:53", net.IP(addr[:]).String())}
	r.publishReferral(ctx, qname, next)
	return next, nil
}

// publishReferral is a no-op when the resolver was built without a Bus.
func (r *Resolver) publishReferral(ctx context.Context, qname string, servers []string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(ctx, eventbus.TopicReferral, ReferralEvent{Qname: qname, Servers: servers})
}

// query sends a single non-recursive query to ns and returns the parsed
// response, rejecting it if its antispoof fingerprint doesn't match. If the
// context carries a worker-owned outbound socket (see internal/worker),
// that socket is reused via WriteToUDP/ReadFromUDP instead of dialing a
// fresh one; this includes the side lookups issued by nextServers, which
// run on the same context. Otherwise (e.g. a resolver used outside the
// worker pool) a connection is dialed per call.
func (r *Resolver) query(ctx context.Context, ns, qname string, qtype, qclass uint16) (packet.Message, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
	defer cancel()

	txID := random.TransactionID()
	// Names decoded from the reply are lowercased without a trailing dot, so
	// the query's own name is fingerprinted in that same form.
	fp := r.guard.Fingerprint(ns, txID, strings.ToLower(strings.TrimSuffix(qname, ".")), qtype, qclass)

	req := packet.Message{
		Header: packet.Header{
			ID:     txID,
			Opcode: packet.OpcodeQuery,
			RD:     false, // iterative queries never set RD
		},
		Question: []packet.Question{{Name: qname, Type: qtype, Class: qclass}},
	}

	out := pool.GetBuffer()
	defer pool.PutBuffer(out)
	if err := req.Marshal(out); err != nil {
		return packet.Message{}, err
	}

	var respBuf [packet.BufferSize]byte
	n, err := r.exchange(queryCtx, ns, out.Bytes()[:out.Pos()], respBuf[:])
	if err != nil {
		return packet.Message{}, err
	}
	metrics.UpstreamRoundtripsTotal.Inc()

	in := pool.GetBuffer()
	defer pool.PutBuffer(in)
	in.Load(respBuf[:n])

	resp, err := packet.ParseMessage(in)
	if err != nil {
		return packet.Message{}, err
	}

	if resp.Header.ID != txID {
		return packet.Message{}, errors.New("resolver: transaction ID mismatch, possible spoofed response")
	}
	// The fingerprint is checked against the question the reply echoes, so
	// a reply for a different question under the same ID is rejected.
	if len(resp.Question) == 0 || !r.guard.Verify(fp, ns, resp.Header.ID,
		resp.Question[0].Name, resp.Question[0].Type, resp.Question[0].Class) {
		metrics.SpoofRejectedTotal.Inc()
		return packet.Message{}, errors.New("resolver: antispoof fingerprint mismatch")
	}

	return resp, nil
}

// exchange writes req to ns and reads one response into resp, returning the
// number of bytes read. It prefers a worker-owned socket found on ctx
// (shared across every query that worker ever sends, via WriteToUDP so it
// can target a different nameserver each call) and falls back to dialing a
// one-off connection when no such socket is available.
func (r *Resolver) exchange(ctx context.Context, ns string, req, resp []byte) (int, error) {
	if conn, ok := worker.ConnFromContext(ctx); ok {
		return r.exchangeShared(ctx, conn, ns, req, resp)
	}

	conn, err := r.dial(ctx, ns)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}
	if _, err := conn.Write(req); err != nil {
		return 0, err
	}
	return conn.Read(resp)
}

func (r *Resolver) exchangeShared(ctx context.Context, conn *net.UDPConn, ns string, req, resp []byte) (int, error) {
	addr, err := net.ResolveUDPAddr("udp", ns)
	if err != nil {
		return 0, err
	}
	if dl, ok := ctx.Deadline(); ok {
		conn.SetDeadline(dl)
	}
	if _, err := conn.WriteToUDP(req, addr); err != nil {
		return 0, err
	}

	for {
		n, from, err := conn.ReadFromUDP(resp)
		if err != nil {
			return 0, err
		}
		// A shared socket may still have a stray datagram in flight from a
		// previous query this worker sent; only accept one that actually
		// came from the nameserver just queried.
		if from.IP.Equal(addr.IP) && from.Port == addr.Port {
			return n, nil
		}
	}
}
