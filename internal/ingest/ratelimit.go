package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
)

// Limited wraps an Ingestor with a client-side rate limiter, the provider's
// lookback ceiling, and a bounded per-call timeout. Paid upstream quotas are
// consumed per request, so the limiter sits in front of every fetch,
// including fallback attempts.
type Limited struct {
	inner   Ingestor
	limiter *rate.Limiter
	maxDays int
	timeout time.Duration
}

// Limit wraps inner. perSec <= 0 disables limiting; maxDays <= 0 leaves the
// window unclamped; timeout <= 0 means the caller's context bounds the call
// alone.
func Limit(inner Ingestor, perSec float64, burst int, maxDays int, timeout time.Duration) *Limited {
	var lim *rate.Limiter
	if perSec > 0 {
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(perSec), burst)
	}
	return &Limited{inner: inner, limiter: lim, maxDays: maxDays, timeout: timeout}
}

func (l *Limited) ID() string    { return l.inner.ID() }
func (l *Limited) Primary() bool { return l.inner.Primary() }

// Fetch clamps the trailing window to the provider's maximum, waits for a
// limiter token, then delegates with a bounded deadline.
func (l *Limited) Fetch(ctx context.Context, subject string, interval model.Interval, days int) (Result, error) {
	if l.maxDays > 0 && days > l.maxDays {
		days = l.maxDays
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("%s: rate limit wait: %w", l.inner.ID(), err)
		}
	}
	return l.inner.Fetch(ctx, subject, interval, days)
}
