package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
)

// binanceMaxLimit is the klines endpoint's hard per-request cap.
const binanceMaxLimit = 1000

// Binance fetches native pre-bucketed klines from the Binance REST API.
// It is the designated display-safe primary: its OHLCV is used directly,
// never re-bucketed.
type Binance struct {
	client  *http.Client
	baseURL string
	primary bool

	// SymbolMap maps subject ids (e.g. "bitcoin") to exchange symbols
	// (e.g. "BTCUSDT"). Unmapped subjects are uppercased with "USDT" appended.
	SymbolMap map[string]string

	intervals map[model.Interval]bool
}

// NewBinance creates a Binance klines ingestor. intervals lists the
// granularities served natively; primary marks the display-safe chain head.
func NewBinance(baseURL string, primary bool, intervals []model.Interval) *Binance {
	supported := make(map[model.Interval]bool, len(intervals))
	for _, iv := range intervals {
		supported[iv] = true
	}
	return &Binance{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		primary: primary,
		SymbolMap: map[string]string{
			"bitcoin":  "BTCUSDT",
			"ethereum": "ETHUSDT",
			"solana":   "SOLUSDT",
		},
		intervals: supported,
	}
}

func (b *Binance) ID() string    { return "binance" }
func (b *Binance) Primary() bool { return b.primary }

func (b *Binance) symbol(subject string) string {
	if s, ok := b.SymbolMap[subject]; ok {
		return s
	}
	return strings.ToUpper(subject) + "USDT"
}

// Fetch pulls up to binanceMaxLimit klines covering the trailing window.
// Binance serves every configured interval natively, so the result is
// always pre-bucketed candles.
func (b *Binance) Fetch(ctx context.Context, subject string, interval model.Interval, days int) (Result, error) {
	if !b.intervals[interval] {
		return Result{}, ErrUnsupportedInterval
	}

	limit := int(int64(days) * 86_400_000 / interval.WidthMs())
	if limit < 1 {
		limit = 1
	}
	if limit > binanceMaxLimit {
		limit = binanceMaxLimit
	}

	u := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		b.baseURL, url.QueryEscape(b.symbol(subject)), interval, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("binance fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("binance read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("binance: status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}

	series, err := parseKlines(body, interval.WidthMs())
	if err != nil {
		return Result{}, fmt.Errorf("binance parse: %w", err)
	}
	if len(series) == 0 {
		return Result{}, ErrEmptyResult
	}
	return Result{Native: true, Candles: series}, nil
}

// parseKlines decodes the klines array-of-arrays payload:
// [openTime, open, high, low, close, volume, closeTime, ...] with prices as
// strings. Open times are floored to the bucket width so they satisfy the
// alignment invariant even when the upstream shifts session boundaries.
func parseKlines(body []byte, widthMs int64) (model.CandleSeries, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}

	series := make(model.CandleSeries, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("kline %d: want >= 6 fields, got %d", i, len(row))
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			return nil, fmt.Errorf("kline %d: open time: %w", i, err)
		}
		prices := make([]float64, 5)
		for j := 1; j <= 5; j++ {
			var s string
			if err := json.Unmarshal(row[j], &s); err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j, err)
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("kline %d field %d: %w", i, j, err)
			}
			prices[j-1] = v
		}
		vol := prices[4]
		series = append(series, model.Candle{
			BucketStartMs: openTime - openTime%widthMs,
			Open:          prices[0],
			High:          prices[1],
			Low:           prices[2],
			Close:         prices[3],
			Volume:        &vol,
			SourceID:      "binance",
		})
	}
	return series, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
