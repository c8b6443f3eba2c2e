package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeComplete  = "complete"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapire_offline_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediapire_offline_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapire_offline_downloads_total",
			Help: "Total number of save requests by outcome",
		},
		[]string{"outcome"},
	)

	downloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediapire_offline_download_duration_seconds",
			Help:    "Time spent downloading and committing a record",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	bytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediapire_offline_bytes_downloaded_total",
			Help: "Total media bytes written to the blob store",
		},
	)

	downloadActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediapire_offline_download_active",
			Help: "1 while a download holds the single flight slot",
		},
	)

	catalogRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediapire_offline_catalog_records",
			Help: "Number of records in the offline catalog",
		},
	)

	storageBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediapire_offline_storage_bytes",
			Help: "Bytes used under the storage directory",
		},
	)

	eventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediapire_offline_events_dropped_total",
			Help: "Progress events dropped for slow subscribers",
		},
		[]string{"type"},
	)

	eventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediapire_offline_event_subscribers",
			Help: "Number of active event subscribers",
		},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDownload records the outcome of a save request. Bytes only counts
// media that was actually written.
func RecordDownload(outcome string, bytes int64, duration time.Duration) {
	downloadsTotal.WithLabelValues(outcome).Inc()

	if outcome == OutcomeRejected {
		return
	}

	downloadDuration.Observe(duration.Seconds())

	if bytes > 0 {
		bytesDownloaded.Add(float64(bytes))
	}
}

func SetDownloadActive(active bool) {
	if active {
		downloadActive.Set(1)
	} else {
		downloadActive.Set(0)
	}
}

func SetCatalogSize(records int, usage int64) {
	catalogRecords.Set(float64(records))
	storageBytes.Set(float64(usage))
}

func RecordEventDropped(eventType string) {
	eventsDropped.WithLabelValues(eventType).Inc()
}

func SetEventSubscribers(count int) {
	eventSubscribers.Set(float64(count))
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming handlers working behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request metrics labelled with the mux route template so
// that record ids do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
