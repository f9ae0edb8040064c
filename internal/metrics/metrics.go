// Package metrics records batch and HTTP activity in Prometheus form. The
// CLI writes a node_exporter textfile at exit; the server exposes /metrics.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/temirov/tistory-batch/internal/batch"
)

const (
	namespace = "tistory_batch"

	statusSuccess = "success"
	statusFailure = "failure"
	causeNone     = "none"

	writeTextfileErrorFormat = "write metrics textfile %s: %w"
)

// Recorder owns a private registry so tests and multiple orchestrators do not
// collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	charactersTotal    prometheus.Counter
	articleCharacters  prometheus.Histogram
	batchRunsTotal     *prometheus.CounterVec
	batchInProgress    prometheus.Gauge
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		generationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "total",
				Help:      "Generated topics by outcome and failure cause",
			},
			[]string{"status", "cause"},
		),
		generationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Time spent generating one topic",
				Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		charactersTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "characters_total",
				Help:      "Characters of cleaned article text produced",
			},
		),
		articleCharacters: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "article_characters",
				Help:      "Cleaned article length in characters",
				Buckets:   []float64{500, 1000, 1500, 2000, 2500, 3000, 4000, 6000},
			},
		),
		batchRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "runs_total",
				Help:      "Finished batch runs by outcome",
			},
			[]string{"outcome"},
		),
		batchInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "in_progress",
				Help:      "1 while a batch is running",
			},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
	}
}

// Observe is a batch.Listener.
func (recorder *Recorder) Observe(event batch.Event) {
	switch event.Kind {
	case batch.EventProgress:
		recorder.batchInProgress.Set(1)
	case batch.EventResult:
		if event.Record == nil {
			return
		}
		recorder.observeRecord(*event.Record)
	case batch.EventCompleted, batch.EventStopped:
		recorder.batchRunsTotal.WithLabelValues(event.Kind.String()).Inc()
		recorder.batchInProgress.Set(0)
	}
}

func (recorder *Recorder) observeRecord(record batch.Record) {
	result := record.Result
	if result.Succeeded() {
		recorder.generationsTotal.WithLabelValues(statusSuccess, causeNone).Inc()
		recorder.generationDuration.WithLabelValues(statusSuccess).Observe(record.Duration.Seconds())
		recorder.charactersTotal.Add(float64(result.Article.CharCount))
		recorder.articleCharacters.Observe(float64(result.Article.CharCount))
		return
	}
	cause := causeNone
	if result.Failure != nil {
		cause = result.Failure.Cause.String()
	}
	recorder.generationsTotal.WithLabelValues(statusFailure, cause).Inc()
	recorder.generationDuration.WithLabelValues(statusFailure).Observe(record.Duration.Seconds())
}

// ObserveHTTP records one served request. path should be the route pattern,
// not the raw URL, to keep label cardinality bounded.
func (recorder *Recorder) ObserveHTTP(method string, path string, status int, duration time.Duration) {
	recorder.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	recorder.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (recorder *Recorder) Registry() *prometheus.Registry {
	return recorder.registry
}

func (recorder *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(recorder.registry, promhttp.HandlerOpts{Registry: recorder.registry})
}

// WriteTextfile writes the current values in the text exposition format,
// atomically, for node_exporter's textfile collector.
func (recorder *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, recorder.registry); err != nil {
		return fmt.Errorf(writeTextfileErrorFormat, path, err)
	}
	return nil
}
