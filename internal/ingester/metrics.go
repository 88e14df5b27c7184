package ingester

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "bitingest_"

// Metrics records limiter and run statistics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	inFlight         prometheus.Gauge
	capacity         prometheus.Gauge
	admitted         prometheus.Counter
	released         *prometheus.CounterVec
	admissionWait    prometheus.Histogram
	drainTimeouts    prometheus.Counter
	locatorErrors    prometheus.Counter
	submissionErrors prometheus.Counter
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "operations_in_flight",
			Help: "Number of put operations submitted and not yet completed",
		}),
		capacity: factory.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "operations_capacity",
			Help: "Maximum number of put operations allowed in flight",
		}),
		admitted: factory.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "operations_admitted_total",
			Help: "Number of put operations admitted",
		}),
		released: factory.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "operations_released_total",
			Help: "Number of put operations no longer in flight, by reason",
		}, []string{"reason"}),
		admissionWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    metricsPrefix + "admission_wait_seconds",
			Help:    "Time the producer spent blocked waiting for a free slot",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		drainTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "drain_timeouts_total",
			Help: "Number of drains that ended with operations still outstanding",
		}),
		locatorErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "locator_errors_total",
			Help: "Number of failures to fetch the next file",
		}),
		submissionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "submission_errors_total",
			Help: "Number of put operations rejected at submission",
		}),
	}
}

func (m *Metrics) setCapacity(capacity int) {
	if m == nil {
		return
	}
	m.capacity.Set(float64(capacity))
}

func (m *Metrics) recordAdmitted(wait time.Duration, inFlight int) {
	if m == nil {
		return
	}
	m.admitted.Inc()
	m.admissionWait.Observe(wait.Seconds())
	m.inFlight.Set(float64(inFlight))
}

func (m *Metrics) recordReleased(reason ReleaseReason, inFlight int) {
	if m == nil {
		return
	}
	m.released.WithLabelValues(string(reason)).Inc()
	m.inFlight.Set(float64(inFlight))
}

func (m *Metrics) recordDrainTimeout() {
	if m == nil {
		return
	}
	m.drainTimeouts.Inc()
}

func (m *Metrics) recordLocatorError() {
	if m == nil {
		return
	}
	m.locatorErrors.Inc()
}

func (m *Metrics) recordSubmissionError() {
	if m == nil {
		return
	}
	m.submissionErrors.Inc()
}
