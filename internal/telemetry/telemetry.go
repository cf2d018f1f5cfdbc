// Package telemetry snapshots a Kafka client's connectivity and
// sarama/go-metrics counters into a single cached Statistics value, per
// spec.md §4.5. The snapshot is replaced wholesale under a writer lock on
// each collection tick; the metrics endpoint reads it under a reader lock.
package telemetry

import (
	"sync"
	"time"

	"github.com/IBM/sarama"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

// BrokerState is the narrowed broker connectivity state this collector can
// observe through sarama's public API (Broker.Connected() only reports a
// boolean, unlike the richer librdkafka state machine).
type BrokerState string

const (
	BrokerUp   BrokerState = "up"
	BrokerDown BrokerState = "down"
)

// Statistics is one immutable snapshot of collected telemetry.
type Statistics struct {
	CollectedAt time.Time
	Counters    map[string]float64
	BrokerState map[string]BrokerState // keyed by broker address
}

// Collector periodically replaces its cached Statistics snapshot from a
// sarama client's metric registry and broker list.
type Collector struct {
	client sarama.Client
	log    *logrus.Logger

	mu   sync.RWMutex
	last Statistics
}

// New constructs a Collector over client.
func New(client sarama.Client, log *logrus.Logger) *Collector {
	return &Collector{client: client, log: log}
}

// Collect takes one snapshot and replaces the cached Statistics. Acquiring
// the writer lock never blocks callers of Snapshot for long, since the
// lock is only held across the swap, not the collection work.
func (c *Collector) Collect() {
	stats := Statistics{
		CollectedAt: time.Now(),
		Counters:    snapshotCounters(c.client.Config().MetricRegistry),
		BrokerState: snapshotBrokerState(c.client.Brokers()),
	}

	c.mu.Lock()
	c.last = stats
	c.mu.Unlock()
}

// Run collects on every tick until stop is closed.
func (c *Collector) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Collect()
		case <-stop:
			return
		}
	}
}

// Snapshot returns the most recently collected Statistics.
func (c *Collector) Snapshot() Statistics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func snapshotCounters(registry gometrics.Registry) map[string]float64 {
	out := map[string]float64{}
	if registry == nil {
		return out
	}
	registry.Each(func(name string, metric interface{}) {
		switch m := metric.(type) {
		case gometrics.Counter:
			out[name] = float64(m.Count())
		case gometrics.Meter:
			out[name] = float64(m.Count())
		case gometrics.Histogram:
			out[name] = float64(m.Count())
		case gometrics.Gauge:
			out[name] = float64(m.Value())
		case gometrics.GaugeFloat64:
			out[name] = m.Value()
		}
	})
	return out
}

func snapshotBrokerState(brokers []*sarama.Broker) map[string]BrokerState {
	out := map[string]BrokerState{}
	for _, b := range brokers {
		connected, err := b.Connected()
		if err != nil || !connected {
			out[b.Addr()] = BrokerDown
			continue
		}
		out[b.Addr()] = BrokerUp
	}
	return out
}
