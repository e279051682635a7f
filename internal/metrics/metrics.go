package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/joshua-vybe/feedbridge/internal/breaker"
)

// Publish result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds the collectors registered by the ingestor.
type Metrics struct {
	// PublishTotal counts event bus publishes by topic and result.
	PublishTotal *prometheus.CounterVec

	// ConnectorUp is 1 while a connector is running.
	ConnectorUp *prometheus.GaugeVec

	// CircuitState is the breaker state per source (0/1/2).
	CircuitState *prometheus.GaugeVec
}

// New registers all collectors with reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "feedbridge_publish_total",
			Help: "Event bus publish attempts by topic and result.",
		}, []string{"topic", "result"}),

		ConnectorUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "feedbridge_connector_up",
			Help: "Whether a feed connector is running (1) or stopped (0).",
		}, []string{"source"}),

		CircuitState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "feedbridge_circuit_state",
			Help: "Circuit breaker state per source: 0=closed, 1=open, 2=half-open.",
		}, []string{"source"}),
	}
}

// ObservePublish records one publish attempt. Nil-safe so components
// can run without metrics in tests.
func (m *Metrics) ObservePublish(topic string, success bool) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if !success {
		result = ResultError
	}
	m.PublishTotal.WithLabelValues(topic, result).Inc()
}

// SetConnectorUp records whether the named source's connector is running.
func (m *Metrics) SetConnectorUp(source string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.ConnectorUp.WithLabelValues(source).Set(v)
}

// CircuitStateFunc returns a breaker state callback bound to the named
// source, suitable for breaker.WithStateFunc.
func (m *Metrics) CircuitStateFunc(source string) func(breaker.State) {
	return func(s breaker.State) {
		if m == nil {
			return
		}
		m.CircuitState.WithLabelValues(source).Set(float64(s))
	}
}
