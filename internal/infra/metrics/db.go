package metrics

import "github.com/prometheus/client_golang/prometheus"

var dbPoolDesc = prometheus.NewDesc(
	"db_pool_stats",
	"Current state of the database connection pool.",
	[]string{"state"}, nil, // 'total', 'idle', 'in_use'
)

// PoolStatFunc reports total, idle and in-use connections.
type PoolStatFunc func() (total, idle, inUse int32)

// poolCollector reads pool stats at scrape time.
type poolCollector struct {
	stat PoolStatFunc
}

func (c poolCollector) Describe(ch chan<- *prometheus.Desc) { ch <- dbPoolDesc }

func (c poolCollector) Collect(ch chan<- prometheus.Metric) {
	total, idle, inUse := c.stat()
	ch <- prometheus.MustNewConstMetric(dbPoolDesc, prometheus.GaugeValue, float64(total), "total")
	ch <- prometheus.MustNewConstMetric(dbPoolDesc, prometheus.GaugeValue, float64(idle), "idle")
	ch <- prometheus.MustNewConstMetric(dbPoolDesc, prometheus.GaugeValue, float64(inUse), "in_use")
}

// RegisterDBPool exposes pool stats; call once after the pool is opened.
func RegisterDBPool(stat PoolStatFunc) error {
	return Registry.Register(poolCollector{stat: stat})
}
