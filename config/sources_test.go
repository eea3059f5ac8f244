package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/policy"
)

const sampleSources = `
providers:
  - id: binance
    kind: klines
    base_url: https://api.binance.com
    primary: true
    intervals: [1h, 4h, 1d]
    max_days: 1000
    rate_per_sec: 10
    burst: 20
    timeout: 5s
  - id: coingecko
    kind: market_chart
    base_url: https://api.coingecko.com/api/v3
    max_days: 365
    rate_per_sec: 0.5
    burst: 3
    timeout: 8s

chains:
  display: [binance, coingecko]

policy:
  - source: coingecko
    allow_display: true
    allow_redistribution: false
    purposes: [display]

ttl:
  - intervals: [1h]
    ttl: 90s
  - intervals: [1d, 1w]
    ttl: 60m
default_ttl: 4m
`

func writeSources(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSources(t *testing.T) {
	s, err := LoadSources(writeSources(t, sampleSources))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(s.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(s.Providers))
	}
	p, ok := s.Provider("binance")
	if !ok || !p.Primary || p.Timeout.Std() != 5*time.Second {
		t.Errorf("binance spec wrong: %+v ok=%v", p, ok)
	}
	if got := s.Chains["display"]; len(got) != 2 || got[0] != "binance" || got[1] != "coingecko" {
		t.Errorf("display chain wrong: %v", got)
	}
}

func TestTTLNamespaces(t *testing.T) {
	s, err := LoadSources(writeSources(t, sampleSources))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := s.TTLFor(model.Interval1h); got != 90*time.Second {
		t.Errorf("1h TTL: got %v, want 90s", got)
	}
	if got := s.TTLFor(model.Interval1w); got != time.Hour {
		t.Errorf("1w TTL: got %v, want 1h", got)
	}
	// Unmatched interval falls to the default, never a hard-coded global.
	if got := s.TTLFor(model.Interval4h); got != 4*time.Minute {
		t.Errorf("4h TTL: got %v, want default 4m", got)
	}
}

func TestPolicyEntries(t *testing.T) {
	s, err := LoadSources(writeSources(t, sampleSources))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pol := policy.New(s.PolicyEntries())
	if !pol.IsAllowed("coingecko", policy.PurposeDisplay) {
		t.Error("coingecko display should be allowed")
	}
	if pol.IsAllowed("coingecko", policy.PurposeCache) {
		t.Error("coingecko redistribution should be denied")
	}
}

func TestLoadSources_RejectsUnknownChainProvider(t *testing.T) {
	_, err := LoadSources(writeSources(t, `
providers:
  - id: binance
    kind: klines
    base_url: x
chains:
  display: [ghost]
`))
	if err == nil {
		t.Error("expected error for chain referencing unknown provider")
	}
}

func TestLoadSources_RejectsBadInterval(t *testing.T) {
	_, err := LoadSources(writeSources(t, `
providers:
  - id: binance
    kind: klines
    base_url: x
    intervals: [3h]
`))
	if err == nil {
		t.Error("expected error for unknown interval")
	}
}
