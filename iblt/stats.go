package iblt

import (
	"github.com/detailyang/fastrand-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/atomic"
)

const (
	sampleRate = 128
)

type Stats struct {
	Adds    atomic.Uint64
	Removes atomic.Uint64

	// decode related metrics
	Decodes        atomic.Uint64
	DecodeFailures atomic.Uint64
	Peeled         atomic.Uint64

	// sampled, multiply by sampleRate
	Lookups atomic.Uint64
}

var stats = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "iblt_stats",
	Help: "Stats about operations on invertible bloom lookup tables",
}, []string{"metric", "name"})

func (t *Table) Stats() *Stats {
	return &t.stats
}

// PublishStats sets the iblt_stats gauges of this table under name.
func (t *Table) PublishStats(name string) {
	stats.WithLabelValues("adds", name).Set(float64(t.stats.Adds.Load()))
	stats.WithLabelValues("removes", name).Set(float64(t.stats.Removes.Load()))
	stats.WithLabelValues("decodes", name).Set(float64(t.stats.Decodes.Load()))
	stats.WithLabelValues("decode_failures", name).Set(float64(t.stats.DecodeFailures.Load()))
	stats.WithLabelValues("peeled", name).Set(float64(t.stats.Peeled.Load()))
	stats.WithLabelValues("lookups", name).Set(float64(t.stats.Lookups.Load() * sampleRate))

	stats.WithLabelValues("size", name).Set(float64(len(t.cells)))
	stats.WithLabelValues("length", name).Set(float64(t.Length()))
}

func maybeInc(shouldSample bool, a *atomic.Uint64) {
	if shouldSample {
		a.Inc()
	}
}

func shouldSample() bool {
	return (fastrand.FastRand() & (sampleRate - 1)) == 0
}
