package cache

import (
	"github.com/rcrowley/go-metrics"
)

// Stats is a snapshot of the counters of a cache
type Stats struct {
	Strategy         Strategy `json:"strategy"`
	Capacity         int      `json:"capacity"`
	Size             int      `json:"size"`
	Requests         int64    `json:"requests"`
	Misses           int64    `json:"misses"`
	Evictions        int64    `json:"evictions"`
	PercentageMisses float64  `json:"percentage_misses"`
}

// counters holds the observable state of a cache.
// go-metrics counters are atomic, reading them never blocks cache access.
type counters struct {
	requests  metrics.Counter
	misses    metrics.Counter
	evictions metrics.Counter
}

// newCounters registers the counters of a cache in reg under "cache.<name>.*".
// A nil registry yields private counters.
func newCounters(name string, reg metrics.Registry) *counters {
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	if name == "" {
		name = "default"
	}
	prefix := "cache." + name + "."

	return &counters{
		requests:  metrics.GetOrRegisterCounter(prefix+"requests", reg),
		misses:    metrics.GetOrRegisterCounter(prefix+"misses", reg),
		evictions: metrics.GetOrRegisterCounter(prefix+"evictions", reg),
	}
}

func (c *counters) snapshot() Stats {
	// misses first: requests are incremented before misses, so this order never
	// reports more misses than requests
	misses := c.misses.Count()
	requests := c.requests.Count()

	return Stats{
		Requests:         requests,
		Misses:           misses,
		Evictions:        c.evictions.Count(),
		PercentageMisses: PercentageMisses(misses, requests),
	}
}

func (c *counters) clear() {
	c.requests.Clear()
	c.misses.Clear()
	c.evictions.Clear()
}

// PercentageMisses returns misses/requests as a percentage (0 if there were no requests)
func PercentageMisses(misses, requests int64) float64 {
	if requests <= 0 {
		return 0
	}
	return float64(misses) * 100 / float64(requests)
}
