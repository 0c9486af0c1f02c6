package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "alarmboard_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	refreshCycles  *prometheus.CounterVec
	refreshLatency *prometheus.HistogramVec

	sourceFailures *prometheus.CounterVec

	statusFetches *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	streamClients prometheus.Gauge

	cardsGauge  prometheus.Gauge
	errorsGauge prometheus.Gauge
)

// Init registers observability metrics.
func Init(logger *log.Logger) {
	registerOnce.Do(func() {
		refreshCycles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "refresh_cycles_total",
				Help: "Total collection cycles by result",
			},
			[]string{"result"},
		)
		refreshLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "refresh_cycle_latency_seconds",
				Help:    "Collection cycle latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		sourceFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "source_failures_total",
				Help: "Total per-source collection failures by class",
			},
			[]string{"class"},
		)

		statusFetches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "status_fetches_total",
				Help: "Total comment store fetches by result",
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exports_total",
				Help: "Total history exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "History export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		streamClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stream_clients",
				Help: "Connected dashboard stream clients",
			},
		)

		cardsGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "snapshot_cards",
				Help: "Cards in the current snapshot",
			},
		)
		errorsGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "snapshot_errors",
				Help: "Error entries in the current snapshot",
			},
		)

		prometheus.MustRegister(
			refreshCycles,
			refreshLatency,
			sourceFailures,
			statusFetches,
			exportTotal,
			exportLatency,
			streamClients,
			cardsGauge,
			errorsGauge,
		)

		if logger != nil {
			logger.Printf("metrics: registered")
		}
	})
}

// ObserveRefreshCycle records one collection cycle's duration and result.
func ObserveRefreshCycle(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if refreshCycles != nil {
		refreshCycles.WithLabelValues(result).Inc()
	}
	if refreshLatency != nil {
		refreshLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncSourceFailure increments per-source failure counter.
func IncSourceFailure(class string) {
	if class == "" {
		class = "unknown"
	}
	if sourceFailures != nil {
		sourceFailures.WithLabelValues(class).Inc()
	}
}

// IncStatusFetch increments comment store fetch counter.
func IncStatusFetch(result string) {
	if result == "" {
		result = resultSuccess
	}
	if statusFetches != nil {
		statusFetches.WithLabelValues(result).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// StreamClientConnected adjusts the connected client gauge.
func StreamClientConnected(delta int) {
	if streamClients == nil {
		return
	}
	streamClients.Add(float64(delta))
}

// SetSnapshotSize records the current snapshot's card and error counts.
func SetSnapshotSize(cards, errors int) {
	if cardsGauge != nil {
		cardsGauge.Set(float64(cards))
	}
	if errorsGauge != nil {
		errorsGauge.Set(float64(errors))
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
