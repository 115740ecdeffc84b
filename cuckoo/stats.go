package cuckoo

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
	Inserts       atomic.Uint64
	FailedInserts atomic.Uint64
	Removes       atomic.Uint64
	Kicks         atomic.Uint64
	Rollbacks     atomic.Uint64

	// sampled, multiply by sampleRate
	Lookups atomic.Uint64
}

var stats = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "cuckoo_filter_stats",
	Help: "Stats about operations on cuckoo filters",
}, []string{"metric", "name"})

func (cf *Filter) Stats() *Stats {
	return &cf.stats
}

// PublishStats sets the cuckoo_filter_stats gauges of this filter under name.
func (cf *Filter) PublishStats(name string) {
	stats.WithLabelValues("inserts", name).Set(float64(cf.stats.Inserts.Load()))
	stats.WithLabelValues("failed_inserts", name).Set(float64(cf.stats.FailedInserts.Load()))
	stats.WithLabelValues("removes", name).Set(float64(cf.stats.Removes.Load()))
	stats.WithLabelValues("kicks", name).Set(float64(cf.stats.Kicks.Load()))
	stats.WithLabelValues("rollbacks", name).Set(float64(cf.stats.Rollbacks.Load()))
	stats.WithLabelValues("lookups", name).Set(float64(cf.stats.Lookups.Load() * sampleRate))

	stats.WithLabelValues("count", name).Set(float64(cf.count))
	stats.WithLabelValues("load_factor", name).Set(cf.LoadFactor())
	stats.WithLabelValues("rate", name).Set(cf.Rate())
}

func maybeInc(shouldSample bool, a *atomic.Uint64) {
	if shouldSample {
		a.Inc()
	}
}

func shouldSample() bool {
	return (fastrand.FastRand() & (sampleRate - 1)) == 0
}
