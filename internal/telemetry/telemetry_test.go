package telemetry

import (
	"testing"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotCountersCoversMetricKinds(t *testing.T) {
	registry := gometrics.NewRegistry()

	counter := gometrics.NewCounter()
	counter.Inc(5)
	registry.Register("requests", counter)

	gauge := gometrics.NewGauge()
	gauge.Update(42)
	registry.Register("batch-size", gauge)

	out := snapshotCounters(registry)
	assert.Equal(t, float64(5), out["requests"])
	assert.Equal(t, float64(42), out["batch-size"])
}

func TestSnapshotCountersNilRegistry(t *testing.T) {
	out := snapshotCounters(nil)
	assert.Empty(t, out)
}

func TestCollectorSnapshotInitiallyZeroValue(t *testing.T) {
	c := &Collector{}
	snap := c.Snapshot()
	assert.True(t, snap.CollectedAt.IsZero())
}
