package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sasmalgiri/Datasimplify-sub013/config"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/api"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/audit"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/cache"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/indicator"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/ingest"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/logger"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/metrics"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/policy"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/resolve"
	"github.com/sasmalgiri/Datasimplify-sub013/pkg/partnerapi"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("marketd", slog.LevelInfo)
	log.Println("[marketd] starting...")

	cfg := config.Load()

	sources, err := config.LoadSources(cfg.SourcesPath)
	if err != nil {
		log.Fatalf("[marketd] load sources: %v", err)
	}
	log.Printf("[marketd] %d providers, %d chains loaded from %s",
		len(sources.Providers), len(sources.Chains), cfg.SourcesPath)

	pol := policy.New(sources.PolicyEntries())
	prom := metrics.New()
	go metrics.Serve(cfg.MetricsAddr)

	// ---- Result cache: Redis when configured, in-memory otherwise ----
	var store cache.Cache
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("[marketd] redis init failed: %v", err)
		}
		defer rc.Close()
		store = rc
		log.Printf("[marketd] redis cache ready at %s", cfg.RedisAddr)
	} else {
		store = cache.NewMemory(time.Now)
		log.Println("[marketd] in-memory cache (REDIS_ADDR not set)")
	}

	// ---- Compliance audit journal (off hot path) ----
	os.MkdirAll(filepath.Dir(cfg.AuditDBPath), 0o755)
	journal, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		log.Fatalf("[marketd] audit journal init failed: %v", err)
	}
	defer journal.Close()
	log.Printf("[marketd] audit journal ready at %s", cfg.AuditDBPath)

	// ---- Providers, each behind its quota limiter ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	built := make(map[string]ingest.Ingestor)
	chains := make(map[string][]ingest.Ingestor, len(sources.Chains))
	for purpose, ids := range sources.Chains {
		for _, id := range ids {
			ing, ok := built[id]
			if !ok {
				spec, found := sources.Provider(id)
				if !found {
					log.Fatalf("[marketd] chain %q references unknown provider %q", purpose, id)
				}
				ing, err = buildIngestor(ctx, cfg, spec)
				if err != nil {
					log.Fatalf("[marketd] build provider %q: %v", id, err)
				}
				built[id] = ing
			}
			chains[purpose] = append(chains[purpose], ing)
		}
		log.Printf("[marketd] chain %q: %v", purpose, ids)
	}

	resolver := resolve.New(resolve.Config{
		Chains:  chains,
		Policy:  pol,
		Cache:   store,
		TTLFor:  sources.TTLFor,
		Metrics: prom,
		Audit:   journal,
	})

	srv := api.NewServer(resolver, indicator.NewEngine(), prom)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("[marketd] http listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[marketd] http server: %v", err)
		}
	}()

	// ---- Wait for shutdown signal ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[marketd] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)

	log.Println("[marketd] shutdown complete.")
}

// buildIngestor instantiates one Ingestor from its provider row, wrapped in
// the row's rate limit and lookback ceiling. Partner login failures are
// logged, not fatal: the resolver's fallback handles an unauthenticated
// partner like any other provider outage.
func buildIngestor(ctx context.Context, cfg *config.Config, spec config.ProviderSpec) (ingest.Ingestor, error) {
	var inner ingest.Ingestor
	switch spec.Kind {
	case "klines":
		intervals := make([]model.Interval, 0, len(spec.Intervals))
		for _, s := range spec.Intervals {
			iv, err := model.ParseInterval(s)
			if err != nil {
				return nil, err
			}
			intervals = append(intervals, iv)
		}
		inner = ingest.NewBinance(spec.BaseURL, spec.Primary, intervals)

	case "market_chart":
		inner = ingest.NewCoinGecko(spec.BaseURL, "")

	case "partner":
		client := partnerapi.New(partnerapi.Config{
			APIKey:  cfg.PartnerAPIKey,
			BaseURL: spec.BaseURL,
			Timeout: spec.Timeout.Std(),
		})
		if cfg.PartnerClientCode != "" {
			if err := client.Login(ctx, cfg.PartnerClientCode, cfg.PartnerPassword, cfg.PartnerTOTPSecret); err != nil {
				log.Printf("[marketd] partner login failed: %v (provider will be skipped by fallback)", err)
			} else {
				log.Println("[marketd] partner session established")
			}
		} else {
			log.Println("[marketd] partner credentials not set, provider will fail over")
		}
		inner = ingest.NewPartner(client, time.Now)

	default:
		return nil, fmt.Errorf("unknown provider kind %q", spec.Kind)
	}

	return ingest.Limit(inner, spec.RatePerSec, spec.Burst, spec.MaxDays, spec.Timeout.Std()), nil
}
