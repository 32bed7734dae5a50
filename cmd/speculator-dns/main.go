package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/specCon18/Speculator-DNS/internal/logging"
	"github.com/specCon18/Speculator-DNS/internal/ratelimit"
	"github.com/specCon18/Speculator-DNS/internal/resolver"
	"github.com/specCon18/Speculator-DNS/internal/server"
)

var (
	udpAddr       = flag.String("udp", "0.0.0.0:2053", "UDP listen address")
	bootstrap     = flag.String("bootstrap", resolver.Bootstrap, "comma-separated bootstrap nameserver(s), host:port")
	maxIterations = flag.Int("max-iterations", 16, "maximum upstream round trips per query")
	queryTimeout  = flag.Duration("query-timeout", 2*time.Second, "timeout for a single upstream round trip")
	workers       = flag.Int("workers", runtime.NumCPU()*4, "worker pool size for concurrent resolution")
	qps           = flag.Float64("rate-limit-qps", 100, "per-client queries-per-second limit")
	burst         = flag.Int("rate-limit-burst", 200, "per-client rate limit burst size")
	metricsAddr   = flag.String("metrics", "", "address to serve Prometheus metrics on (empty disables)")
	stats         = flag.Bool("stats", true, "print statistics periodically")
)

func main() {
	flag.Parse()

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                                                              ║")
	fmt.Println("║              Speculator-DNS - Iterative DNS Resolver          ║")
	fmt.Println("║                                                              ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()

	log := logging.Default()

	cfg := server.DefaultConfig()
	cfg.UDPAddr = *udpAddr
	cfg.Workers = *workers
	cfg.MetricsAddr = *metricsAddr
	cfg.Logger = log
	cfg.ResolverConfig = resolver.Config{
		Bootstrap:     strings.Split(*bootstrap, ","),
		QueryTimeout:  *queryTimeout,
		MaxIterations: *maxIterations,
	}
	cfg.RateLimit = ratelimit.RateLimiterConfig{
		QueriesPerSecond: *qps,
		BurstSize:        *burst,
		CleanupInterval:  5 * time.Minute,
	}

	fmt.Printf("Configuration:\n")
	fmt.Printf("  UDP Address:      %s\n", cfg.UDPAddr)
	fmt.Printf("  Bootstrap:        %v\n", cfg.ResolverConfig.Bootstrap)
	fmt.Printf("  Max Iterations:   %d\n", cfg.ResolverConfig.MaxIterations)
	fmt.Printf("  Workers:          %d\n", cfg.Workers)
	fmt.Printf("  Rate Limit:       %.0f qps (burst %d)\n", *qps, *burst)
	fmt.Printf("  Metrics:          %s\n", metricsLabel(*metricsAddr))
	fmt.Println()

	srv, err := server.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("resolver started successfully!")
	fmt.Println()

	if *stats {
		go printStats(srv)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	fmt.Println()

	if err := srv.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Error stopping server: %v\n", err)
		os.Exit(1)
	}
}

func metricsLabel(addr string) string {
	if addr == "" {
		return "disabled"
	}
	return addr
}

func printStats(srv *server.Server) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	lastQueries := uint64(0)
	lastTime := time.Now()

	for range ticker.C {
		st := srv.GetStats()
		now := time.Now()
		elapsed := now.Sub(lastTime).Seconds()

		qps := float64(st.Queries-lastQueries) / elapsed

		fmt.Printf("═══════════════════════════════════════════════════════════\n")
		fmt.Printf("Statistics (%.1fs interval):\n", elapsed)
		fmt.Printf("  Queries:      %10d  (%.0f qps)\n", st.Queries, qps)
		fmt.Printf("  Answers:      %10d\n", st.Answers)
		fmt.Printf("  Errors:       %10d\n", st.Errors)
		fmt.Printf("  NXDOMAIN:     %10d\n", st.NXDomain)
		fmt.Printf("  Rate Limited: %10d\n", st.RateLimited)
		fmt.Printf("\nWorker Pool:\n")
		fmt.Printf("  Queue Depth:  %10d / %d\n", st.Pool.QueueDepth, st.Pool.QueueSize)
		fmt.Printf("  Utilization:  %9.1f%%\n", st.Pool.Utilization)
		fmt.Printf("═══════════════════════════════════════════════════════════\n\n")

		lastQueries = st.Queries
		lastTime = now
	}
}
