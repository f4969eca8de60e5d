// Package observability holds the service's Prometheus metrics and logger
// setup.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/tsunamiml/pkg/log"
)

const namespace = "tsunamiml"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	Predictions       *prometheus.CounterVec // labels: label={likely,unlikely}
	PredictionErrors  prometheus.Counter
	ImputedIntensity  prometheus.Counter
	PredictionLatency prometheus.Histogram

	// Stream metrics.
	EventsConsumed prometheus.Counter
	EventsProduced prometheus.Counter
	EventErrors    *prometheus.CounterVec // labels: stage={decode,validate,predict,publish}
	StreamRunning  prometheus.Gauge
	BatchSize      prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Predictions served by label.",
		}, []string{"label"}),
		PredictionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Prediction requests that failed validation or inference.",
		}),
		ImputedIntensity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imputed_intensity_total",
			Help:      "Predictions whose intensity was filled by the imputer.",
		}),
		PredictionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent in the pipeline per prediction.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		EventsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_consumed_total",
			Help:      "Total earthquake events read from the source topic.",
		}),
		EventsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_produced_total",
			Help:      "Total scored events written to the sink topic.",
		}),
		EventErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_event_errors_total",
			Help:      "Events skipped or failed by processing stage.",
		}, []string{"stage"}),
		StreamRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_running",
			Help:      "1 when the scoring stream is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_batch_size",
			Help:      "Number of events per batch read from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Predictions,
		m.PredictionErrors,
		m.ImputedIntensity,
		m.PredictionLatency,
		m.EventsConsumed,
		m.EventsProduced,
		m.EventErrors,
		m.StreamRunning,
		m.BatchSize,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsWithRegistry creates metrics registered with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// ObservePrediction records one served prediction.
func (m *Metrics) ObservePrediction(label string, imputed bool, elapsed time.Duration) {
	m.Predictions.WithLabelValues(label).Inc()
	if imputed {
		m.ImputedIntensity.Inc()
	}
	m.PredictionLatency.Observe(elapsed.Seconds())
}

// ObservePredictionError records one failed prediction.
func (m *Metrics) ObservePredictionError() {
	m.PredictionErrors.Inc()
}

// NewLogger installs a zerolog provider at the given level as the process
// default and returns it.
func NewLogger(level string) (*log.ZerologProvider, error) {
	return NewLoggerWithWriter(os.Stderr, level)
}

// NewLoggerWithWriter is NewLogger writing to w.
func NewLoggerWithWriter(w io.Writer, level string) (*log.ZerologProvider, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	p := log.NewZerologProviderWithWriter(w, lvl)
	log.SetProvider(p)
	log.SetupLogger(w, level)
	return p, nil
}
