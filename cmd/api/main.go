package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mailtrust/internal/config"
	"mailtrust/internal/content"
	"mailtrust/internal/lookup"
	"mailtrust/internal/ratelimit"
	"mailtrust/internal/validator"
)

func main() {
	cfg := config.Load()

	// 1. DNS resolver
	nameservers, err := lookup.NewNameservers(cfg.DNS.Nameservers)
	if err != nil {
		log.Fatalf("❌ Invalid nameserver configuration: %v", err)
	}
	resolver, err := lookup.NewResolver(lookup.ResolverConfig{
		Timeout:     cfg.DNS.Timeout,
		Lifetime:    cfg.DNS.Lifetime,
		Retries:     cfg.DNS.Retries,
		Nameservers: nameservers,
	})
	if err != nil {
		log.Fatalf("❌ Failed to build DNS resolver: %v", err)
	}
	rc := resolver.Config()
	fmt.Printf("✅ DNS resolver ready (nameservers %v, timeout %v, lifetime %v)\n", nameservers.List(), rc.Timeout, rc.Lifetime)

	// 2. Content rules
	analyzer, err := content.NewAnalyzer(cfg.Content)
	if err != nil {
		log.Fatalf("❌ Invalid content rules: %v", err)
	}

	scanner := validator.NewScanner(resolver, analyzer, validator.Options{
		Selectors:      cfg.DNS.DKIMSelectors,
		MaxSuggestions: cfg.Scan.MaxSuggestions,
	})

	// 3. Root context for background goroutines, cancelled on shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Rate limiter
	limiter, closeLimiter := newLimiter(ctx, cfg.RateLimit)
	defer closeLimiter()

	// 5. Server Configuration
	srv := &server{scanner: scanner, requestTimeout: cfg.Server.RequestTimeout}
	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      srv.routes(cfg, limiter),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 6. Graceful shutdown on SIGTERM / SIGINT.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		fmt.Printf("🚀 mailtrust API running on %s\n", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	<-quit
	fmt.Println("⏳ Shutdown signal received, draining in-flight requests...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Graceful shutdown failed: %v", err)
	}
	fmt.Println("✅ Server shut down cleanly.")
}

func (s *server) routes(cfg config.Config, limiter ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(enableCORS(cfg.Server.CORSOrigins))

	r.Get("/", infoHandler)
	r.Get("/health", healthHandler)
	r.With(rateLimit(limiter), requireAPIKey(cfg.Server.APIKey)).Post("/api/scan-domain", s.scanHandler)
	return r
}

// newLimiter prefers the shared Redis limiter and otherwise keeps counters in
// process, evicting expired windows until ctx ends.
func newLimiter(ctx context.Context, cfg config.RateLimitConfig) (ratelimit.Limiter, func()) {
	if cfg.RedisAddr != "" {
		fmt.Printf("🔌 Connecting to Redis at %s...\n", cfg.RedisAddr)
		r, err := ratelimit.NewRedis(cfg.RedisAddr, cfg.PerMinute, time.Minute)
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		fmt.Printf("✅ Redis rate limiter active (%d requests/minute)\n", cfg.PerMinute)
		return r, func() { r.Close() }
	}

	m := ratelimit.NewMemory(cfg.PerMinute, time.Minute)
	go m.RunCleanup(ctx)
	fmt.Printf("⚠️  REDIS_ADDR not set, rate limiting in memory (%d requests/minute)\n", cfg.PerMinute)
	return m, func() {}
}
