package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joelkehle/moviefinder/internal/detailscache"
	"github.com/joelkehle/moviefinder/internal/httpapi"
	"github.com/joelkehle/moviefinder/internal/recommend"
	"github.com/joelkehle/moviefinder/internal/tracing"
)

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, "moviefinderd")
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("moviefinder tracing_shutdown_error err=%q", err)
		}
	}()

	caller, err := recommend.NewAnthropicCallerFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	generator := recommend.NewGenerator(caller)

	tmdb, err := recommend.NewTMDBLookup(recommend.LookupConfig{
		APIKey:             requiredEnv("TMDB_API_KEY"),
		RateLimitPerMinute: envInt("MOVIEFINDER_TMDB_RATE_LIMIT", recommend.DefaultRateLimitPerMinute),
	})
	if err != nil {
		log.Fatal(err)
	}

	var lookup recommend.MovieLookup = tmdb
	var cached *recommend.CachedLookup
	if path := strings.TrimSpace(os.Getenv("MOVIEFINDER_CACHE_PATH")); path != "" {
		cache, err := detailscache.Open(path, detailscache.DefaultTTL)
		if err != nil {
			log.Fatal(err)
		}
		defer cache.Close()
		cached = recommend.NewCachedLookup(tmdb, cache)
		lookup = cached
	}

	enricher := recommend.NewEnricher(lookup, envInt("MOVIEFINDER_LOOKUP_WORKERS", recommend.DefaultLookupWorkers))
	pipeline := recommend.NewPipeline(generator, enricher)
	if cached != nil {
		pipeline = pipeline.WithCacheMetrics(cached)
	}
	session := recommend.NewSession(pipeline)

	handler := httpapi.NewServer(httpapi.ServerConfig{
		Session: session,
		Lookup:  lookup,
		Poster:  tmdb,
	})

	log.Printf("moviefinder listening addr=%s model=%s", *addr, caller.ModelName())
	srv := &http.Server{Addr: *addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func requiredEnv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		log.Fatalf("missing required env var %s", key)
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	if n <= 0 {
		return fallback
	}
	return n
}
