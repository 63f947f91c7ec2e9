package observability

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stayscan", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stayscan", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ScanCells = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stayscan", Name: "scan_cells_total", Help: "Calendar cells read."},
		[]string{"result"}, // result: ok|unrecognized|undated
	)
	ScanQuotes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stayscan", Name: "scan_quotes_total", Help: "Minimum-stay quotes read."},
		[]string{"result"}, // result: ok|skipped
	)
	ScanRooms = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stayscan", Name: "scan_rooms_total", Help: "Room scans."},
		[]string{"result"}, // result: ok|failed
	)
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stayscan", Name: "reconcile_transitions_total", Help: "Transitions appended."},
		[]string{"type"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "stayscan", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
)

func Serve() {
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ScanCells, ScanQuotes, ScanRooms, Transitions, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveScanCell(result string)  { ScanCells.WithLabelValues(result).Inc() }
func ObserveScanQuote(result string) { ScanQuotes.WithLabelValues(result).Inc() }
func ObserveScanRoom(result string)  { ScanRooms.WithLabelValues(result).Inc() }

func ObserveTransition(transitionType string) {
	Transitions.WithLabelValues(transitionType).Inc()
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}
