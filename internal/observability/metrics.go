package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the assistant. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry
	latency  *latencyWindow

	Recordings        *prometheus.CounterVec
	RecordingDuration prometheus.Histogram
	Confirmations     *prometheus.CounterVec
	GatewayRequests   *prometheus.CounterVec
	GatewayLatency    *prometheus.HistogramVec
	BreakerState      *prometheus.GaugeVec
	WishlistItems     prometheus.Gauge
	WishlistCache     *prometheus.CounterVec
	PollTicks         *prometheus.CounterVec
	StaleResponses    *prometheus.CounterVec
	EventClients      prometheus.Gauge
	EventsSent        *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		latency:  newLatencyWindow(256),
		Recordings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_total",
			Help:      "Voice recordings by outcome.",
		}, []string{"outcome"}),
		RecordingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_duration_seconds",
			Help:      "Length of captured utterances.",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30},
		}),
		Confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Voice result confirmations by outcome.",
		}, []string{"outcome"}),
		GatewayRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Backend requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		GatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_latency_ms",
			Help:      "Backend request latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}, []string{"endpoint"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Gateway circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
		WishlistItems: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wishlist_items",
			Help:      "Items in the active user's wishlist.",
		}),
		WishlistCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wishlist_cache_total",
			Help:      "Cold-start wishlist cache lookups by result.",
		}, []string{"result"}),
		PollTicks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_ticks_total",
			Help:      "Background loop ticks by loop.",
		}, []string{"loop"}),
		StaleResponses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_discarded_total",
			Help:      "Responses dropped because the active user changed in flight.",
		}, []string{"controller"}),
		EventClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_clients",
			Help:      "Connected event stream clients.",
		}),
		EventsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_sent_total",
			Help:      "Event stream messages by type and result.",
		}, []string{"type", "result"}),
	}
}

func (m *Metrics) ObserveGateway(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.GatewayRequests.WithLabelValues(endpoint, outcome).Inc()
	m.GatewayLatency.WithLabelValues(endpoint).Observe(float64(d.Milliseconds()))
	m.latency.Observe(endpoint, float64(d.Microseconds())/1000)
	if outcome != "ok" {
		m.latency.ObserveIndicator(endpoint + "_" + outcome)
	}
}

func (m *Metrics) ObserveRecording(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Recordings.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.RecordingDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(state)
}

func (m *Metrics) SetWishlistItems(n int) {
	if m == nil {
		return
	}
	m.WishlistItems.Set(float64(n))
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.WishlistCache.WithLabelValues(result).Inc()
}

func (m *Metrics) ObservePollTick(loop string) {
	if m == nil {
		return
	}
	m.PollTicks.WithLabelValues(loop).Inc()
}

func (m *Metrics) ObserveStaleResponse(controller string) {
	if m == nil {
		return
	}
	m.StaleResponses.WithLabelValues(controller).Inc()
	m.latency.ObserveIndicator("stale_" + controller)
}

func (m *Metrics) ObserveEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.EventsSent.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) AddEventClients(delta int) {
	if m == nil {
		return
	}
	m.EventClients.Add(float64(delta))
}

// LatencySnapshot summarizes recent gateway latency per endpoint.
func (m *Metrics) LatencySnapshot() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC()}
	}
	return m.latency.Snapshot()
}

func (m *Metrics) ResetLatency() {
	if m == nil {
		return
	}
	m.latency.Reset()
}

// Handler serves this Metrics' registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
