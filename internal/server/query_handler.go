package server

import (
	"context"
	"net"
	"time"

	"github.com/specCon18/Speculator-DNS/internal/eventbus"
	"github.com/specCon18/Speculator-DNS/internal/metrics"
	"github.com/specCon18/Speculator-DNS/internal/packet"
	"github.com/specCon18/Speculator-DNS/internal/pool"
)

// handleQuery decodes one client datagram, resolves it, and writes a
// response back to addr. It never returns an error the worker pool treats
// as a job failure for anything short of a panic — a malformed or refused
// query still gets a best-effort response (or a deliberate drop), not a
// propagated error.
func (s *Server) handleQuery(ctx context.Context, datagram []byte, addr *net.UDPAddr) error {
	start := time.Now()
	s.queries.Add(1)

	clientIP := addr.IP

	if !s.acl.IsAllowed(clientIP) {
		s.errors.Add(1)
		return nil // silently dropped, per ACL policy
	}
	if !s.rl.Allow(clientIP) {
		s.rateLimited.Add(1)
		metrics.RateLimitedTotal.Inc()
		return nil // dropped, not FormErr'd: a rate-limited client gets silence
	}

	in := pool.GetBuffer()
	defer pool.PutBuffer(in)
	in.Load(datagram)

	req, err := packet.ParseMessage(in)
	if err != nil {
		// Unparseable datagram: nothing to echo an ID/question back for.
		s.errors.Add(1)
		return nil
	}

	s.bus.Publish(ctx, eventbus.TopicQuery, req)

	resp := packet.Message{
		Header: packet.Header{
			ID: req.Header.ID,
			QR: true,
			RD: req.Header.RD,
			RA: true,
		},
	}

	if len(req.Question) == 0 {
		resp.Header.Rcode = packet.RcodeFormErr
		s.errors.Add(1)
		s.reply(resp, addr, start)
		return nil
	}

	q := req.Question[0]
	resp.Question = []packet.Question{q}
	resp.Header.Opcode = req.Header.Opcode

	if req.Header.Opcode != packet.OpcodeQuery {
		resp.Header.Rcode = packet.RcodeNotImp
		s.errors.Add(1)
		s.reply(resp, addr, start)
		return nil
	}

	result, err := s.res.Resolve(ctx, q.Name, q.Type, q.Class)
	if err != nil {
		resp.Header.Rcode = packet.RcodeServFail
		s.errors.Add(1)
		s.reply(resp, addr, start)
		return nil
	}

	resp.Header.Rcode = result.Header.Rcode
	resp.Answer = result.Answer
	resp.Authority = result.Authority
	resp.Additional = result.Additional

	s.answers.Add(1)
	if resp.Header.Rcode == packet.RcodeNXDomain {
		s.nxdomain.Add(1)
	}

	s.bus.Publish(ctx, eventbus.TopicResolve, resp)
	s.reply(resp, addr, start)
	return nil
}

// reply marshals resp and writes it to addr, recording the end-to-end
// resolve-duration metric and the per-rcode query counter.
func (s *Server) reply(resp packet.Message, addr *net.UDPAddr, start time.Time) {
	out := pool.GetBuffer()
	defer pool.PutBuffer(out)

	if err := resp.Marshal(out); err != nil {
		s.log.Error("marshal response: %v", err)
		return
	}

	s.writeResponse(out.Bytes()[:out.Pos()], addr)
	metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	metrics.QueriesTotal.WithLabelValues(rcodeLabel(resp.Header.Rcode)).Inc()
}

func rcodeLabel(rcode uint8) string {
	switch rcode {
	case packet.RcodeNoError:
		return "NOERROR"
	case packet.RcodeFormErr:
		return "FORMERR"
	case packet.RcodeServFail:
		return "SERVFAIL"
	case packet.RcodeNXDomain:
		return "NXDOMAIN"
	case packet.RcodeNotImp:
		return "NOTIMP"
	case packet.RcodeRefused:
		return "REFUSED"
	default:
		return "OTHER"
	}
}
