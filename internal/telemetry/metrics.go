package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector adapts a Collector's latest Statistics snapshot into
// prometheus.Metric values on every scrape, rather than maintaining its own
// gauge registrations that would drift from the snapshot.
type PrometheusCollector struct {
	collector *Collector

	counterDesc     *prometheus.Desc
	brokerStateDesc *prometheus.Desc
}

// NewPrometheusCollector wraps collector for registration with a
// prometheus.Registry.
func NewPrometheusCollector(collector *Collector) *PrometheusCollector {
	return &PrometheusCollector{
		collector: collector,
		counterDesc: prometheus.NewDesc(
			"kafka_proxy_client_counter",
			"Raw sarama/go-metrics counter value, by metric name.",
			[]string{"name"}, nil,
		),
		brokerStateDesc: prometheus.NewDesc(
			"kafka_proxy_broker_state",
			"1 if the broker is in the given state, 0 otherwise.",
			[]string{"broker", "state"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (p *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.counterDesc
	ch <- p.brokerStateDesc
}

// Collect implements prometheus.Collector. Broker-per-state emits one
// gauge cell per (broker, state) pair so dashboards can alert on state
// transitions without open-ended label cardinality.
func (p *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	snap := p.collector.Snapshot()

	for name, value := range snap.Counters {
		ch <- prometheus.MustNewConstMetric(p.counterDesc, prometheus.GaugeValue, value, name)
	}

	for broker, state := range snap.BrokerState {
		for _, candidate := range []BrokerState{BrokerUp, BrokerDown} {
			value := 0.0
			if state == candidate {
				value = 1.0
			}
			ch <- prometheus.MustNewConstMetric(p.brokerStateDesc, prometheus.GaugeValue, value, broker, string(candidate))
		}
	}
}

// Handler registers collector against the default Prometheus registerer
// (alongside the producer package's counters and the standard Go/process
// collectors it already carries) and returns the /metrics HTTP handler.
func Handler(collector *Collector) http.Handler {
	prometheus.MustRegister(NewPrometheusCollector(collector))
	return promhttp.Handler()
}
