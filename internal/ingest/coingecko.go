package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/bucket"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
)

// CoinGecko fetches the market_chart price/volume tick list for a coin.
// The endpoint returns unevenly spaced samples at one upstream-chosen
// resolution, so the caller buckets them at whatever width was requested.
// Volumes are 24h running totals, not per-trade deltas (snapshot mode).
type CoinGecko struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewCoinGecko creates a CoinGecko market_chart ingestor. apiKey may be
// empty for the public tier.
func NewCoinGecko(baseURL, apiKey string) *CoinGecko {
	return &CoinGecko{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (g *CoinGecko) ID() string    { return "coingecko" }
func (g *CoinGecko) Primary() bool { return false }

// marketChart is the market_chart response: [[ms, value], ...] pairs.
type marketChart struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// Fetch returns loose ticks for the trailing window. Every interval is
// derivable because the samples are finer than the coarsest bucket widths;
// the bucketer does the sub-interval synthesis.
func (g *CoinGecko) Fetch(ctx context.Context, subject string, interval model.Interval, days int) (Result, error) {
	u := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d",
		g.baseURL, url.PathEscape(subject), days)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, err
	}
	if g.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("coingecko fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("coingecko read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("coingecko: status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}

	var chart marketChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return Result{}, fmt.Errorf("coingecko parse: %w", err)
	}
	if len(chart.Prices) == 0 {
		return Result{}, ErrEmptyResult
	}

	// Volumes arrive as a parallel series; index them by timestamp so each
	// price tick picks up the matching snapshot when one exists.
	volumes := make(map[int64]float64, len(chart.TotalVolumes))
	for _, pair := range chart.TotalVolumes {
		volumes[int64(pair[0])] = pair[1]
	}

	ticks := make([]model.Tick, 0, len(chart.Prices))
	for _, pair := range chart.Prices {
		t := model.Tick{TimestampMs: int64(pair[0]), Price: pair[1]}
		if v, ok := volumes[t.TimestampMs]; ok {
			t.Volume = model.Vol(v)
		}
		ticks = append(ticks, t)
	}
	return Result{Ticks: ticks, VolumeMode: bucket.VolumeSnapshot}, nil
}
