package server

import (
	"context"
	"net"

	"github.com/specCon18/Speculator-DNS/internal/pool"
	"github.com/specCon18/Speculator-DNS/internal/worker"
)

// serveUDP reads datagrams off the listener and dispatches each onto the
// worker pool for handling. The read loop itself never blocks on
// resolution: a slow or stuck query only occupies one worker slot.
func (s *Server) serveUDP() {
	defer s.wg.Done()

	for {
		buf := pool.GetBuffer()
		n, addr, err := s.conn.ReadFromUDP(buf.Bytes())
		if err != nil {
			pool.PutBuffer(buf)
			select {
			case <-s.ctx.Done():
				return
			default:
				s.log.Warn("udp read error: %v", err)
				continue
			}
		}

		datagram := make([]byte, n)
		copy(datagram, buf.Bytes()[:n])
		pool.PutBuffer(buf)

		clientAddr := addr
		job := worker.JobFunc(func(ctx context.Context) error {
			return s.handleQuery(ctx, datagram, clientAddr)
		})

		if err := s.pool.SubmitAsync(s.ctx, job); err != nil {
			s.log.Warn("dropping query from %s: %v", clientAddr, err)
			s.errors.Add(1)
		}
	}
}

// writeResponse sends b back to addr, logging (not panicking) on failure —
// a write error on a UDP socket almost always means the client is gone.
func (s *Server) writeResponse(b []byte, addr *net.UDPAddr) {
	if _, err := s.conn.WriteToUDP(b, addr); err != nil {
		s.log.Warn("write to %s failed: %v", addr, err)
	}
}
