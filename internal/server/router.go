package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/gridcache/internal/logger"
	"github.com/marmos91/gridcache/pkg/metrics"
)

// Response wraps every health payload.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewRouter builds the chi router. src may be nil, in which case readiness
// always fails.
func NewRouter(src StatsSource) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	h := &healthHandler{src: src, startTime: time.Now()}
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.liveness)
		r.Get("/ready", h.readiness)
	})

	r.Get("/metrics", serveMetrics)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})
	return r
}

// serveMetrics resolves the registry per request so metrics enabled after
// the router was built are still exposed.
func serveMetrics(w http.ResponseWriter, r *http.Request) {
	reg := metrics.GetRegistry()
	if reg == nil {
		http.Error(w, "metrics disabled", http.StatusNotFound)
		return
	}
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}).ServeHTTP(w, r)
}

type healthHandler struct {
	src       StatsSource
	startTime time.Time
}

func (h *healthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"service":    "gridcache",
			"started_at": h.startTime.UTC().Format(time.RFC3339),
			"uptime":     uptime.Round(time.Second).String(),
		},
	})
}

func (h *healthHandler) readiness(w http.ResponseWriter, _ *http.Request) {
	if h.src == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthy("no controller"))
		return
	}
	stats, err := h.src.Stats()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthy(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"session":    stats.SessionID,
			"assets":     stats.Assets,
			"pipeline":   stats.Pipeline.State.String(),
			"thumbnails": stats.Cache.Thumbnail.Cached,
			"highres":    stats.Cache.HighRes.Cached,
		},
	})
}

func unhealthy(msg string) Response {
	return Response{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("write response failed", logger.Err(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		args := []any{
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}
		// Scrapes and probes are frequent; keep them out of INFO.
		if r.URL.Path == "/metrics" || strings.HasPrefix(r.URL.Path, "/health") {
			logger.Debug("http request", args...)
		} else {
			logger.Info("http request", args...)
		}
	})
}
