// Package api exposes the candle and indicator endpoints over HTTP. The
// layer stays thin: parse, resolve, compute, encode. All bucketing and
// indicator math lives below it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sasmalgiri/Datasimplify-sub013/internal/indicator"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/logger"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/metrics"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/model"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/policy"
	"github.com/sasmalgiri/Datasimplify-sub013/internal/resolve"
)

// defaultDays bounds the trailing window when the query omits it.
const (
	defaultDays = 30
	maxDays     = 1000
)

// resolver is the slice of the resolve package the handlers need.
type resolver interface {
	Resolve(ctx context.Context, subject string, interval model.Interval, days int, purpose string) (resolve.Resolution, error)
}

// Server carries the handler dependencies.
type Server struct {
	resolver resolver
	engine   *indicator.Engine
	metrics  *metrics.Metrics
}

// NewServer creates the API server. metrics may be nil in tests.
func NewServer(r resolver, engine *indicator.Engine, m *metrics.Metrics) *Server {
	return &Server{resolver: r, engine: engine, metrics: m}
}

// Router builds the HTTP mux.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/candles", s.handleCandles)
	mux.HandleFunc("/api/v1/indicators", s.handleIndicators)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

type candlesResponse struct {
	Subject     string             `json:"subject"`
	Interval    string             `json:"interval"`
	Source      string             `json:"source"`
	Stale       bool               `json:"stale"`
	Attribution string             `json:"attribution,omitempty"`
	Candles     model.CandleSeries `json:"candles"`
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	subject, interval, days, ok := s.parseQuery(w, r)
	if !ok {
		return
	}
	ctx := logger.WithTraceID(r.Context(), logger.GenerateTraceID(subject, time.Now()))

	res, err := s.resolver.Resolve(ctx, subject, interval, days, policy.PurposeDisplay)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	slog.Info("candles served", append([]any{
		slog.String("subject", subject),
		slog.String("interval", interval.String()),
		slog.String("source", res.SourceID),
		slog.Bool("stale", res.Stale),
	}, logger.LogWithTrace(ctx)...)...)

	writeJSON(w, http.StatusOK, candlesResponse{
		Subject:     subject,
		Interval:    interval.String(),
		Source:      res.SourceID,
		Stale:       res.Stale,
		Attribution: res.Attribution,
		Candles:     res.Series,
	})
}

type indicatorResponse struct {
	Subject     string                `json:"subject"`
	Interval    string                `json:"interval"`
	Source      string                `json:"source"`
	Stale       bool                  `json:"stale"`
	Attribution string                `json:"attribution,omitempty"`
	Result      model.IndicatorResult `json:"result"`
}

// indicatorErrorBody is the explicit insufficient-data signal, distinct from
// any normal zero or empty result.
type indicatorErrorBody struct {
	Error            string `json:"error"`
	InsufficientData bool   `json:"insufficient_data"`
	Need             int    `json:"need,omitempty"`
	Got              int    `json:"got,omitempty"`
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	subject, interval, days, ok := s.parseQuery(w, r)
	if !ok {
		return
	}
	kind, err := model.ParseIndicatorKind(r.URL.Query().Get("indicator"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, indicatorErrorBody{Error: err.Error()})
		return
	}
	ctx := logger.WithTraceID(r.Context(), logger.GenerateTraceID(subject, time.Now()))

	res, err := s.resolver.Resolve(ctx, subject, interval, days, policy.PurposeIndicators)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	start := time.Now()
	result, err := s.engine.Compute(kind, res.Series)
	if s.metrics != nil {
		s.metrics.IndicatorComputeDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		var ide *indicator.InsufficientDataError
		if errors.As(err, &ide) {
			writeJSON(w, http.StatusUnprocessableEntity, indicatorErrorBody{
				Error:            ide.Error(),
				InsufficientData: true,
				Need:             ide.Need,
				Got:              ide.Got,
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, indicatorErrorBody{Error: err.Error()})
		return
	}
	if s.metrics != nil {
		s.metrics.IndicatorsTotal.WithLabelValues(string(kind)).Inc()
	}

	slog.Info("indicator served", append([]any{
		slog.String("subject", subject),
		slog.String("interval", interval.String()),
		slog.String("kind", string(kind)),
		slog.String("source", res.SourceID),
	}, logger.LogWithTrace(ctx)...)...)

	writeJSON(w, http.StatusOK, indicatorResponse{
		Subject:     subject,
		Interval:    interval.String(),
		Source:      res.SourceID,
		Stale:       res.Stale,
		Attribution: res.Attribution,
		Result:      result,
	})
}

func (s *Server) parseQuery(w http.ResponseWriter, r *http.Request) (string, model.Interval, int, bool) {
	q := r.URL.Query()
	subject := q.Get("subject")
	if subject == "" {
		writeJSON(w, http.StatusBadRequest, indicatorErrorBody{Error: "missing subject"})
		return "", "", 0, false
	}
	interval, err := model.ParseInterval(q.Get("interval"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, indicatorErrorBody{Error: err.Error()})
		return "", "", 0, false
	}
	days := defaultDays
	if raw := q.Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 1 || days > maxDays {
			writeJSON(w, http.StatusBadRequest, indicatorErrorBody{Error: "days must be an integer in [1, " + strconv.Itoa(maxDays) + "]"})
			return "", "", 0, false
		}
	}
	return subject, interval, days, true
}

func writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resolve.ErrInvalidInterval):
		writeJSON(w, http.StatusBadRequest, indicatorErrorBody{Error: err.Error()})
	case errors.Is(err, resolve.ErrComplianceBlocked):
		writeJSON(w, http.StatusUnavailableForLegalReasons, indicatorErrorBody{Error: err.Error()})
	case errors.Is(err, resolve.ErrUpstreamUnavailable):
		writeJSON(w, http.StatusBadGateway, indicatorErrorBody{Error: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away; 499-style close without a body.
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		writeJSON(w, http.StatusInternalServerError, indicatorErrorBody{Error: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[api] encode response: %v", err)
	}
}
