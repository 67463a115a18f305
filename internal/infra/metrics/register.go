package metrics

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every bot collector plus the Go and process collectors.
// It is separate from the global default so tests can scrape it in isolation.
var Registry = prometheus.NewRegistry()

var (
	once    sync.Once
	pending []prometheus.Collector
)

// register is called from init() in each metrics file.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister adds all queued collectors to Registry. Safe to call more than once.
func MustRegister() {
	once.Do(func() {
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		Registry.MustRegister(pending...)
	})
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	MustRegister()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
