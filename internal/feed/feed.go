// Package feed streams live trades over websocket and warms the result cache
// with freshly bucketed one-minute candles. It subscribes to the exchange's
// combined aggTrade stream, normalizes each trade into a model.Tick, and
// drains ticks through a per-subject SPSC ring into the bucketer.
//
// The feed is a cache warmer only: the resolve path stays synchronous and
// never depends on the feed being up.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/bucket"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/cache"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/metrics"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/ringbuf"
)

const (
	// DefaultStreamURL is the exchange's combined-stream websocket endpoint.
	DefaultStreamURL = "wss://stream.binance.com:9443/stream"

	// feedSourceID keys warmed entries so the resolver's cache lookup for the
	// primary provider hits them.
	feedSourceID = "binance"

	ringCapacity  = 4096
	flushInterval = 250 * time.Millisecond
	maxCandles    = 1500

	initialBackoff = time.Second
	maxBackoff     = time.Minute
)

// Subscription pairs a subject with its exchange stream symbol.
type Subscription struct {
	Subject string // e.g. "bitcoin"
	Symbol  string // e.g. "btcusdt"
}

// combinedMsg is the combined-stream envelope.
type combinedMsg struct {
	Stream string   `json:"stream"`
	Data   aggTrade `json:"data"`
}

// aggTrade is the subset of the aggTrade payload the feed consumes.
type aggTrade struct {
	Price    string `json:"p"`
	Quantity string `json:"q"`
	TradeMs  int64  `json:"T"`
}

// subjectState is the per-subject pipeline: websocket reader produces into the
// ring, the flush loop consumes, buckets completed minutes, and keeps a capped
// rolling series for the cache payload.
type subjectState struct {
	subject  string
	ring     *ringbuf.Ring
	bucketer *bucket.Bucketer
	pending  []model.Tick
	series   model.CandleSeries
}

// Feed owns the websocket connection and the warm loop for a set of subjects.
type Feed struct {
	url      string
	subs     []Subscription
	cache    cache.Cache
	ttl      time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
	bySymbol map[string]*subjectState
}

// New creates a Feed. ttl is the cache TTL applied to warmed 1m entries.
func New(url string, subs []Subscription, c cache.Cache, ttl time.Duration, m *metrics.Metrics) *Feed {
	f := &Feed{
		url:      url,
		subs:     subs,
		cache:    c,
		ttl:      ttl,
		metrics:  m,
		now:      time.Now,
		bySymbol: make(map[string]*subjectState, len(subs)),
	}
	for _, s := range subs {
		f.bySymbol[strings.ToLower(s.Symbol)] = &subjectState{
			subject:  s.Subject,
			ring:     ringbuf.New(ringCapacity),
			bucketer: bucket.New(model.Interval1m.WidthMs(), bucket.VolumeSum, feedSourceID),
		}
	}
	return f
}

// Run connects, streams, and reconnects with capped exponential backoff until
// ctx is cancelled. The flush loop runs for the whole lifetime so ticks
// buffered across a reconnect are not lost.
func (f *Feed) Run(ctx context.Context) error {
	if len(f.subs) == 0 {
		return fmt.Errorf("feed: no subscriptions")
	}

	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		f.flushLoop(ctx)
	}()

	backoff := initialBackoff
	for {
		err := f.stream(ctx)
		if ctx.Err() != nil {
			<-flushDone
			return ctx.Err()
		}
		log.Printf("[feed] stream ended: %v, reconnecting in %s", err, backoff)
		if f.metrics != nil {
			f.metrics.FeedReconnects.Inc()
		}

		select {
		case <-ctx.Done():
			<-flushDone
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// streamURL builds the combined-stream URL for all subscriptions.
func (f *Feed) streamURL() string {
	names := make([]string, 0, len(f.subs))
	for _, s := range f.subs {
		names = append(names, strings.ToLower(s.Symbol)+"@aggTrade")
	}
	sort.Strings(names)
	return f.url + "?streams=" + strings.Join(names, "/")
}

// stream runs one websocket session: dial, read until error or cancel.
func (f *Feed) stream(ctx context.Context) error {
	url := f.streamURL()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()
	log.Printf("[feed] connected, %d streams", len(f.subs))

	// Close the socket when ctx fires so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.handleMessage(data)
	}
}

// handleMessage parses one combined-stream frame and pushes the tick into the
// owning subject's ring.
func (f *Feed) handleMessage(data []byte) {
	var msg combinedMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[feed] bad frame: %v", err)
		return
	}

	symbol, _, ok := strings.Cut(msg.Stream, "@")
	if !ok {
		return
	}
	st := f.bySymbol[strings.ToLower(symbol)]
	if st == nil {
		return
	}

	price, err := strconv.ParseFloat(msg.Data.Price, 64)
	if err != nil || msg.Data.TradeMs <= 0 {
		return
	}
	tick := model.Tick{TimestampMs: msg.Data.TradeMs, Price: price}
	if qty, err := strconv.ParseFloat(msg.Data.Quantity, 64); err == nil {
		tick.Volume = model.Vol(qty)
	}

	if !st.ring.Push(tick) {
		if f.metrics != nil {
			f.metrics.FeedDroppedTicks.Inc()
		}
		return
	}
	if f.metrics != nil {
		f.metrics.FeedTicksTotal.Inc()
	}
}

// flushLoop periodically drains each subject's ring, buckets any minutes that
// have closed, and writes the rolling series to the cache.
func (f *Feed) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nowMs := f.now().UnixMilli()
			for _, st := range f.bySymbol {
				f.flushSubject(ctx, st, nowMs)
			}
		}
	}
}

// flushSubject moves ring ticks into the pending window, seals every bucket
// that ended before the current minute, and refreshes the cache entry when
// new candles were produced.
func (f *Feed) flushSubject(ctx context.Context, st *subjectState, nowMs int64) {
	for {
		tick, ok := st.ring.Pop()
		if !ok {
			break
		}
		st.pending = append(st.pending, tick)
	}
	if len(st.pending) == 0 {
		return
	}

	width := model.Interval1m.WidthMs()
	currentBucket := (nowMs / width) * width

	var closed, open []model.Tick
	for _, t := range st.pending {
		if t.TimestampMs < currentBucket {
			closed = append(closed, t)
		} else {
			open = append(open, t)
		}
	}
	if len(closed) == 0 {
		return
	}
	st.pending = open

	candles := st.bucketer.Bucket(closed)
	st.series = appendCandles(st.series, candles)
	if len(st.series) > maxCandles {
		st.series = st.series[len(st.series)-maxCandles:]
	}
	if f.metrics != nil {
		f.metrics.CandlesBucketed.Add(float64(len(candles)))
	}

	key := cache.Key{Subject: st.subject, Interval: model.Interval1m, SourceID: feedSourceID}
	payload := make(model.CandleSeries, len(st.series))
	copy(payload, st.series)
	if err := f.cache.Put(ctx, key, payload, f.ttl); err != nil {
		log.Printf("[feed] cache put %s: %v", key, err)
	}
}

// appendCandles merges freshly bucketed candles onto the rolling series,
// keeping bucket starts strictly increasing. A late tick can re-emit any
// sealed bucket, not just the tail: the partial candle is merged into the
// matching sealed one, or inserted in order when its bucket is entirely new.
func appendCandles(series model.CandleSeries, add model.CandleSeries) model.CandleSeries {
	for _, c := range add {
		idx := len(series)
		for idx > 0 && series[idx-1].BucketStartMs > c.BucketStartMs {
			idx--
		}
		if idx > 0 && series[idx-1].BucketStartMs == c.BucketStartMs {
			series[idx-1] = mergeCandle(series[idx-1], c)
			continue
		}
		series = append(series, model.Candle{})
		copy(series[idx+1:], series[idx:])
		series[idx] = c
	}
	return series
}

func mergeCandle(a, b model.Candle) model.Candle {
	out := a
	if b.High > out.High {
		out.High = b.High
	}
	if b.Low < out.Low {
		out.Low = b.Low
	}
	out.Close = b.Close
	if a.Volume != nil && b.Volume != nil {
		out.Volume = model.Vol(*a.Volume + *b.Volume)
	} else if b.Volume != nil {
		out.Volume = b.Volume
	}
	return out
}
