package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder registers and records the engine's Prometheus metrics.
type Recorder struct {
	// API metrics
	apiRequestCounter   *prometheus.CounterVec
	apiLatencyHistogram *prometheus.HistogramVec

	// Pricing metrics
	pricingCounter   *prometheus.CounterVec
	pricingLatency   *prometheus.HistogramVec
	intrinsicCounter *prometheus.CounterVec

	// Solver metrics
	solveCounter        *prometheus.CounterVec
	solveIterations     *prometheus.HistogramVec
	robustSolveCounter  *prometheus.CounterVec
	robustGuessesNeeded *prometheus.HistogramVec

	// Worker metrics
	workerMessagesCounter *prometheus.CounterVec

	// Stream metrics
	streamClientsGauge prometheus.Gauge
}

// NewRecorder creates all metrics on the default Prometheus registry
func NewRecorder() *Recorder {
	return NewRecorderWith(prometheus.DefaultRegisterer)
}

// NewRecorderWith creates all metrics on the given registerer
func NewRecorderWith(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		apiRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oe_api_requests_total",
				Help: "The total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		apiLatencyHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oe_api_latency_seconds",
				Help:    "API request latency distribution",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"method", "path"},
		),
		pricingCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oe_pricings_total",
				Help: "The total number of option pricings",
			},
			[]string{"option_type", "outcome"},
		),
		pricingLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oe_pricing_duration_seconds",
				Help:    "Time taken for one pricing plus Greeks evaluation",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"option_type"},
		),
		intrinsicCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oe_intrinsic_fallbacks_total",
				Help: "Pricings that fell back to intrinsic value",
			},
			[]string{"reason"},
		),
		solveCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oe_iv_solves_total",
				Help: "Implied-volatility solves by terminal status",
			},
			[]string{"status"},
		),
		solveIterations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oe_iv_solve_iterations",
				Help:    "Newton-Raphson iterations per solve",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"status"},
		),
		robustSolveCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oe_iv_robust_solves_total",
				Help: "Robust multi-guess solves by status",
			},
			[]string{"status"},
		),
		robustGuessesNeeded: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oe_iv_robust_guesses",
				Help:    "Initial guesses tried per robust solve",
				Buckets: prometheus.LinearBuckets(1, 1, 5),
			},
			[]string{"status"},
		),
		workerMessagesCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oe_worker_messages_total",
				Help: "Pricing-worker messages by outcome",
			},
			[]string{"outcome"},
		),
		streamClientsGauge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "oe_stream_clients",
				Help: "Connected websocket stream clients",
			},
		),
	}
}

// RecordAPIRequest records one HTTP request
func (r *Recorder) RecordAPIRequest(method, path string, status int, latency time.Duration) {
	r.apiRequestCounter.WithLabelValues(method, path, statusLabel(status)).Inc()
	r.apiLatencyHistogram.WithLabelValues(method, path).Observe(latency.Seconds())
}

// RecordPricing records one pricing by option type and outcome
// ("ok" or "invalid")
func (r *Recorder) RecordPricing(optionType string, outcome string, latency time.Duration) {
	r.pricingCounter.WithLabelValues(optionType, outcome).Inc()
	r.pricingLatency.WithLabelValues(optionType).Observe(latency.Seconds())
}

// RecordIntrinsicFallback records a pricing that used the intrinsic branch
func (r *Recorder) RecordIntrinsicFallback(reason string) {
	r.intrinsicCounter.WithLabelValues(reason).Inc()
}

// RecordSolve records one solver run by terminal status
func (r *Recorder) RecordSolve(status string, iterations int) {
	r.solveCounter.WithLabelValues(status).Inc()
	r.solveIterations.WithLabelValues(status).Observe(float64(iterations))
}

// RecordRobustSolve records one robust solve by status and guesses tried
func (r *Recorder) RecordRobustSolve(status string, guessesTried int) {
	r.robustSolveCounter.WithLabelValues(status).Inc()
	r.robustGuessesNeeded.WithLabelValues(status).Observe(float64(guessesTried))
}

// RecordWorkerMessage records one pricing-worker message by outcome
func (r *Recorder) RecordWorkerMessage(outcome string) {
	r.workerMessagesCounter.WithLabelValues(outcome).Inc()
}

// SetStreamClients sets the connected websocket client count
func (r *Recorder) SetStreamClients(n int) {
	r.streamClientsGauge.Set(float64(n))
}

func statusLabel(status int) string {
	switch {
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
