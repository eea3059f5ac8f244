package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/policy"
)

// Duration is a time.Duration that unmarshals YAML strings like "90s" or "15m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ProviderSpec describes one upstream provider in the sources table.
type ProviderSpec struct {
	ID      string `yaml:"id"`
	Kind    string `yaml:"kind"` // klines | market_chart | partner
	BaseURL string `yaml:"base_url"`
	// Primary marks the display-safe provider that skips the policy gate.
	Primary bool `yaml:"primary"`
	// Intervals the provider serves natively (pre-bucketed candles).
	// Empty means the provider returns loose ticks bucketable at any width.
	Intervals []string `yaml:"intervals"`
	MaxDays   int      `yaml:"max_days"`
	// Client-side rate limiting against the provider's quota.
	RatePerSec float64  `yaml:"rate_per_sec"`
	Burst      int      `yaml:"burst"`
	Timeout    Duration `yaml:"timeout"`
}

// PolicySpec is one redistribution-policy row.
type PolicySpec struct {
	Source              string   `yaml:"source"`
	AllowDisplay        bool     `yaml:"allow_display"`
	AllowRedistribution bool     `yaml:"allow_redistribution"`
	Purposes            []string `yaml:"purposes"`
	Attribution         string   `yaml:"attribution"`
}

// TTLSpec assigns a cache TTL to a class of intervals (a cache namespace).
type TTLSpec struct {
	Intervals []string `yaml:"intervals"`
	TTL       Duration `yaml:"ttl"`
}

// Sources is the full parsed sources table.
type Sources struct {
	Providers []ProviderSpec      `yaml:"providers"`
	Chains    map[string][]string `yaml:"chains"` // purpose → ordered provider ids
	Policy    []PolicySpec        `yaml:"policy"`
	TTLs      []TTLSpec           `yaml:"ttl"`
	// DefaultTTL applies to intervals not matched by any TTL row.
	DefaultTTL Duration `yaml:"default_ttl"`
}

// LoadSources reads and validates the YAML sources table.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	var s Sources
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	if s.DefaultTTL <= 0 {
		s.DefaultTTL = Duration(5 * time.Minute)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Sources) validate() error {
	ids := make(map[string]bool, len(s.Providers))
	for i, p := range s.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider %d: missing id", i)
		}
		if ids[p.ID] {
			return fmt.Errorf("provider %q: duplicate id", p.ID)
		}
		ids[p.ID] = true
		for _, iv := range p.Intervals {
			if _, err := model.ParseInterval(iv); err != nil {
				return fmt.Errorf("provider %q: %w", p.ID, err)
			}
		}
	}
	for purpose, chain := range s.Chains {
		if len(chain) == 0 {
			return fmt.Errorf("chain %q: empty", purpose)
		}
		for _, id := range chain {
			if !ids[id] {
				return fmt.Errorf("chain %q: unknown provider %q", purpose, id)
			}
		}
	}
	for _, row := range s.TTLs {
		for _, iv := range row.Intervals {
			if _, err := model.ParseInterval(iv); err != nil {
				return fmt.Errorf("ttl row: %w", err)
			}
		}
		if row.TTL <= 0 {
			return fmt.Errorf("ttl row for %v: non-positive ttl", row.Intervals)
		}
	}
	return nil
}

// TTLFor resolves the cache TTL for an interval from the namespace table.
func (s *Sources) TTLFor(iv model.Interval) time.Duration {
	for _, row := range s.TTLs {
		for _, candidate := range row.Intervals {
			if model.Interval(candidate) == iv {
				return row.TTL.Std()
			}
		}
	}
	return s.DefaultTTL.Std()
}

// PolicyEntries converts the policy rows into the runtime policy table.
func (s *Sources) PolicyEntries() []policy.Entry {
	out := make([]policy.Entry, 0, len(s.Policy))
	for _, row := range s.Policy {
		purposes := make(map[string]bool, len(row.Purposes))
		for _, p := range row.Purposes {
			purposes[p] = true
		}
		out = append(out, policy.Entry{
			SourceID:            row.Source,
			AllowDisplay:        row.AllowDisplay,
			AllowRedistribution: row.AllowRedistribution,
			AllowedPurposes:     purposes,
			Attribution:         row.Attribution,
		})
	}
	return out
}

// Provider looks up a provider spec by id.
func (s *Sources) Provider(id string) (ProviderSpec, bool) {
	for _, p := range s.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderSpec{}, false
}
