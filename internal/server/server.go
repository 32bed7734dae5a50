// Package server ties the resolver to a UDP listener: dispatch each client
// datagram onto a bounded worker pool, where the handler gates it past the
// ACL and rate limiter, decodes and resolves it, and writes the response
// back. The gates run inside the queued job, so a denied or rate-limited
// datagram still takes a queue slot until a worker drops it.
package server

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specCon18/Speculator-DNS/internal/eventbus"
	"github.com/specCon18/Speculator-DNS/internal/logging"
	"github.com/specCon18/Speculator-DNS/internal/metrics"
	"github.com/specCon18/Speculator-DNS/internal/ratelimit"
	"github.com/specCon18/Speculator-DNS/internal/resolver"
	"github.com/specCon18/Speculator-DNS/internal/worker"
)

// Config holds DNS server configuration.
type Config struct {
	// UDPAddr is the address the query handler listens on.
	UDPAddr string

	// Workers sizes the bounded pool that resolution runs on.
	Workers   int
	QueueSize int

	ResolverConfig resolver.Config

	// ACLDefaultAllow sets the ACL's fallback policy when a client address
	// matches neither the allow nor the deny list.
	ACLDefaultAllow bool
	AllowNets       []string
	DenyNets        []string

	RateLimit ratelimit.RateLimiterConfig

	// MetricsAddr, if non-empty, starts a dedicated /metrics HTTP server.
	MetricsAddr string

	ReadTimeout time.Duration

	Logger *logging.Logger
}

// DefaultConfig returns a sensible default server configuration.
func DefaultConfig() Config {
	return Config{
		UDPAddr:   "0.0.0.0:2053",
		Workers:   runtime.NumCPU() * 4,
		QueueSize: 0, // worker.NewPool derives workers*100

		ResolverConfig: resolver.Config{
			Bootstrap:     []string{resolver.Bootstrap},
			QueryTimeout:  2 * time.Second,
			MaxIterations: 16,
		},

		ACLDefaultAllow: true,
		RateLimit:       ratelimit.DefaultRateLimiterConfig(),

		ReadTimeout: 5 * time.Second,

		Logger: logging.Default(),
	}
}

// Server is the recursive DNS query handler.
type Server struct {
	cfg Config
	log *logging.Logger

	conn *net.UDPConn
	pool *worker.Pool
	res  *resolver.Resolver
	acl  *ratelimit.ACL
	rl   *ratelimit.RateLimiter
	bus  *eventbus.Bus

	queries     atomic.Uint64
	answers     atomic.Uint64
	errors      atomic.Uint64
	nxdomain    atomic.Uint64
	rateLimited atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Server. It does not yet bind a socket; call Start for that.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	bus := eventbus.New(64)

	resolverCfg := cfg.ResolverConfig
	resolverCfg.Bus = bus
	res, err := resolver.New(resolverCfg)
	if err != nil {
		return nil, fmt.Errorf("init resolver: %w", err)
	}

	acl := ratelimit.NewACL(cfg.ACLDefaultAllow)
	for _, n := range cfg.AllowNets {
		if err := acl.AllowNet(n); err != nil {
			return nil, fmt.Errorf("acl allow %s: %w", n, err)
		}
	}
	for _, n := range cfg.DenyNets {
		if err := acl.DenyNet(n); err != nil {
			return nil, fmt.Errorf("acl deny %s: %w", n, err)
		}
	}

	rl := ratelimit.NewRateLimiter(cfg.RateLimit)

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:    cfg,
		log:    cfg.Logger,
		res:    res,
		acl:    acl,
		rl:     rl,
		bus:    bus,
		ctx:    ctx,
		cancel: cancel,
	}

	s.pool = worker.NewPool(worker.Config{
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
		PanicHandler: func(r interface{}) { s.log.Error("query handler panic: %v", r) },
		DialOutbound: func() (*net.UDPConn, error) {
			return net.ListenUDP("udp", &net.UDPAddr{})
		},
	})

	return s, nil
}

// Start binds the UDP listener and begins serving queries. It returns once
// the socket is bound; serving happens on a background goroutine.
func (s *Server) Start() error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.UDPAddr)
	if err != nil {
		return fmt.Errorf("resolve listen addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}
	s.conn = conn

	if s.cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.ListenAndServe(s.cfg.MetricsAddr); err != nil {
				s.log.Error("metrics server stopped: %v", err)
			}
		}()
	}

	s.wg.Add(1)
	go s.serveUDP()

	s.wg.Add(1)
	go s.logReferrals()

	s.log.Info("listening on %s", s.cfg.UDPAddr)
	return nil
}

// logReferrals subscribes to the resolver's TopicReferral events and logs
// each one at debug level. It exits once Stop cancels s.ctx, which closes
// the subscription channel.
func (s *Server) logReferrals() {
	defer s.wg.Done()
	sub := s.bus.Subscribe(s.ctx, eventbus.TopicReferral)
	for ev := range sub.Ch {
		if re, ok := ev.Data.(resolver.ReferralEvent); ok {
			s.log.Debug("referral: %s -> %v", re.Qname, re.Servers)
		}
	}
}

// LocalAddr returns the bound listener address. Only valid after Start.
func (s *Server) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Stop gracefully shuts the server down: stops accepting new datagrams,
// drains in-flight work, and releases the resolver and listener.
func (s *Server) Stop() error {
	s.log.Info("shutting down")
	s.cancel()

	if s.conn != nil {
		s.conn.Close()
	}
	s.wg.Wait()

	if err := s.pool.CloseTimeout(10 * time.Second); err != nil {
		s.log.Warn("worker pool shutdown: %v", err)
	}

	s.log.Info("shutdown complete")
	return nil
}

// Stats summarizes server-lifetime counters.
type Stats struct {
	Queries     uint64
	Answers     uint64
	Errors      uint64
	NXDomain    uint64
	RateLimited uint64
	Pool        worker.Stats
}

// GetStats returns current statistics.
func (s *Server) GetStats() Stats {
	return Stats{
		Queries:     s.queries.Load(),
		Answers:     s.answers.Load(),
		Errors:      s.errors.Load(),
		NXDomain:    s.nxdomain.Load(),
		RateLimited: s.rateLimited.Load(),
		Pool:        s.pool.GetStats(),
	}
}

// Subscribe hands back an eventbus subscription for the given topic, for a
// caller (logging, an admin console) that wants to observe server activity
// without being wired directly into the handler.
func (s *Server) Subscribe(ctx context.Context, topic eventbus.Topic) *eventbus.Subscriber {
	return s.bus.Subscribe(ctx, topic)
}
