package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	documentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neatpdf",
			Name:      "documents_ingested_total",
			Help:      "Uploaded files by result (accepted, ignored, rejected)",
		},
		[]string{"result"},
	)

	pagesRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neatpdf",
			Name:      "pages_rendered_total",
			Help:      "Page thumbnails rendered by result",
		},
		[]string{"result"},
	)

	renderLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "neatpdf",
			Name:      "page_render_duration_seconds",
			Help:      "Duration of a single page thumbnail render",
			Buckets:   prometheus.DefBuckets,
		},
	)

	assemblyOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neatpdf",
			Name:      "assembly_operations_total",
			Help:      "PDF assembly operations by op and result",
		},
		[]string{"op", "result"},
	)

	assemblyLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "neatpdf",
			Name:      "assembly_duration_seconds",
			Help:      "Duration of PDF assembly operations by op",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	busyRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neatpdf",
			Name:      "busy_rejections_total",
			Help:      "Actions refused because another operation was in progress",
		},
		[]string{"op"},
	)

	registerOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(documentsIngested, pagesRendered, renderLatency, assemblyOps, assemblyLatency, busyRejections)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncIngested(result string) { documentsIngested.WithLabelValues(result).Inc() }

func ObserveRender(err error, dur time.Duration) {
	pagesRendered.WithLabelValues(result(err)).Inc()
	renderLatency.Observe(dur.Seconds())
}

func ObserveAssembly(op string, err error, dur time.Duration) {
	assemblyOps.WithLabelValues(op, result(err)).Inc()
	assemblyLatency.WithLabelValues(op).Observe(dur.Seconds())
}

func IncBusy(op string) { busyRejections.WithLabelValues(op).Inc() }

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
