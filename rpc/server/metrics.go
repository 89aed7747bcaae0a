package server

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/dDetect/lib/cache"
	"github.com/ValentinKolb/dDetect/lib/catalog"
	"github.com/ValentinKolb/dDetect/lib/match"
	"github.com/ValentinKolb/dDetect/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// serverMetrics exposes the request counters of the server and the cache, pool and
// match counters of all catalogs in the Prometheus text format.
//
// Thread-safety: counters and histograms are atomic, the gauges read the atomic
// counters of the catalogs.
type serverMetrics struct {
	set *metrics.Set
}

func newServerMetrics() *serverMetrics {
	return &serverMetrics{set: metrics.NewSet()}
}

// observe counts a handled request and its duration
func (m *serverMetrics) observe(catalogId uint64, msgType common.MessageType, failed bool, start time.Time) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`ddetect_requests_total{catalog="%d",type=%q}`, catalogId, msgType)).Inc()
	if failed {
		m.set.GetOrCreateCounter(fmt.Sprintf(`ddetect_request_errors_total{catalog="%d",type=%q}`, catalogId, msgType)).Inc()
	}
	m.set.GetOrCreateHistogram(fmt.Sprintf(`ddetect_request_duration_seconds{type=%q}`, msgType)).UpdateDuration(start)
}

// rejected counts a request that could not be routed or decoded
func (m *serverMetrics) rejected(reason string) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`ddetect_requests_rejected_total{reason=%q}`, reason)).Inc()
}

// registerCatalog adds the gauges of a catalog. Every catalog id must only be
// registered once.
func (m *serverMetrics) registerCatalog(catalogId uint64, c *catalog.Catalog) {
	label := func(name, extra string) string {
		if extra == "" {
			return fmt.Sprintf(`%s{catalog="%d"}`, name, catalogId)
		}
		return fmt.Sprintf(`%s{catalog="%d",%s}`, name, catalogId, extra)
	}

	m.set.NewGauge(label("ddetect_catalog_signatures", ""), func() float64 { return float64(c.SignatureCount()) })
	m.set.NewGauge(label("ddetect_catalog_profiles", ""), func() float64 { return float64(c.ProfileCount()) })

	// caches
	for _, e := range cache.Entities {
		entity := fmt.Sprintf("entity=%q", e)
		stat := func(get func(s cache.Stats) float64) func() float64 {
			return func() float64 {
				s, ok := c.CacheStats()[e]
				if !ok {
					return 0
				}
				return get(s)
			}
		}
		m.set.NewGauge(label("ddetect_cache_size", entity), stat(func(s cache.Stats) float64 { return float64(s.Size) }))
		m.set.NewGauge(label("ddetect_cache_requests", entity), stat(func(s cache.Stats) float64 { return float64(s.Requests) }))
		m.set.NewGauge(label("ddetect_cache_misses", entity), stat(func(s cache.Stats) float64 { return float64(s.Misses) }))
		m.set.NewGauge(label("ddetect_cache_evictions", entity), stat(func(s cache.Stats) float64 { return float64(s.Evictions) }))
	}

	// decoder pool
	m.set.NewGauge(label("ddetect_pool_decoders_created", ""), func() float64 { return float64(c.PoolStats().Created) })
	m.set.NewGauge(label("ddetect_pool_decoders_idle", ""), func() float64 { return float64(c.PoolStats().Idle) })
	m.set.NewGauge(label("ddetect_pool_decoders_in_use", ""), func() float64 { return float64(c.PoolStats().InUse) })

	// match methods, counted by the provider in the registry of the catalog
	for _, method := range match.Methods {
		name := "match.method." + method.String()
		m.set.NewGauge(label("ddetect_matches", fmt.Sprintf("method=%q", method)), func() float64 {
			if counter, ok := c.Registry().Get(name).(gometrics.Counter); ok {
				return float64(counter.Count())
			}
			return 0
		})
	}
}

// write writes all metrics of the server and the process
func (m *serverMetrics) write(w io.Writer) {
	m.set.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}

// WriteCatalogMetrics writes the cache, pool and match metrics of a single catalog
// in the Prometheus text format
func WriteCatalogMetrics(w io.Writer, catalogId uint64, c *catalog.Catalog) {
	m := newServerMetrics()
	m.registerCatalog(catalogId, c)
	m.set.WritePrometheus(w)
}
