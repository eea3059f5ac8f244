package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sasmalgiri/Datasimplify-sub013/config"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/cache"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/feed"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/logger"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/metrics"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("feed", slog.LevelInfo)
	log.Println("[feed] starting...")

	cfg := config.Load()
	if cfg.RedisAddr == "" {
		log.Fatal("[feed] REDIS_ADDR required: the warmer shares its cache with marketd through Redis")
	}

	sources, err := config.LoadSources(cfg.SourcesPath)
	if err != nil {
		log.Fatalf("[feed] load sources: %v", err)
	}

	subs := parseSubscriptions(cfg.FeedSubjects)
	if len(subs) == 0 {
		log.Fatalf("[feed] no valid subscriptions in FEED_SUBJECTS=%q", cfg.FeedSubjects)
	}
	log.Printf("[feed] warming %d subjects", len(subs))

	store, err := cache.NewRedis(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatalf("[feed] redis init failed: %v", err)
	}
	defer store.Close()

	prom := metrics.New()
	go metrics.Serve(cfg.MetricsAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	streamURL := getEnv("FEED_STREAM_URL", feed.DefaultStreamURL)
	f := feed.New(streamURL, subs, store, sources.TTLFor(model.Interval1m), prom)

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Println("[feed] shutdown signal received")
		cancel()
		<-done
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			log.Fatalf("[feed] stream loop exited: %v", err)
		}
	}
	log.Println("[feed] shutdown complete.")
}

// parseSubscriptions parses "subject:symbol,subject:symbol" pairs.
func parseSubscriptions(s string) []feed.Subscription {
	var subs []feed.Subscription
	for _, pair := range strings.Split(s, ",") {
		subject, symbol, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || subject == "" || symbol == "" {
			continue
		}
		subs = append(subs, feed.Subscription{Subject: subject, Symbol: symbol})
	}
	return subs
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
