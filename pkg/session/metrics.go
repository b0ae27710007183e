package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors every session kind reports
// through, per SPEC_FULL.md's domain-stack wiring for
// github.com/prometheus/client_golang.
type Metrics struct {
	channelsOpen      *prometheus.GaugeVec
	handshakeFailures *prometheus.CounterVec
	poolSize          prometheus.Gauge
	sessionUp         *prometheus.GaugeVec
	inboundRejections *prometheus.CounterVec
}

// NewMetrics builds and registers a Metrics set on reg. Passing a nil reg
// is not supported; callers that don't want metrics should pass a nil
// *Metrics in Deps instead (every call site nil-checks it).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		channelsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "p2pnet",
			Name:      "channels_open",
			Help:      "Number of currently live channels, by owning session kind.",
		}, []string{"session"}),
		handshakeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "p2pnet",
			Name:      "handshake_failures_total",
			Help:      "Version handshake failures, by owning session kind.",
		}, []string{"session"}),
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "p2pnet",
			Name:      "host_pool_size",
			Help:      "Current address pool size.",
		}),
		sessionUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "p2pnet",
			Name:      "session_up",
			Help:      "1 while a session kind is started, 0 once stopped.",
		}, []string{"session"}),
		inboundRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "p2pnet",
			Name:      "inbound_rejections_total",
			Help:      "Inbound connections closed before the handshake, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.channelsOpen, m.handshakeFailures, m.poolSize, m.sessionUp, m.inboundRejections)
	return m
}

// incInboundRejection records an inbound connection closed before the
// version handshake, tagged with why.
func (m *Metrics) incInboundRejection(reason string) {
	if m == nil {
		return
	}
	m.inboundRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) setUp(session string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.sessionUp.WithLabelValues(session).Set(v)
}

// ObservePoolSize records the address pool's current size. The
// Controller calls this on an interval (host_pool_flush_interval, spec.md
// §6) rather than on every pool mutation, to keep the pool's own hot path
// free of metrics-registry contention.
func (m *Metrics) ObservePoolSize(n int) {
	if m == nil {
		return
	}
	m.poolSize.Set(float64(n))
}
