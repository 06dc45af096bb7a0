package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Timing keys recorded through the armon/go-metrics in-memory sink. The
// server command installs the sink and its SIGUSR1 dump signal.
var (
	GraphBuildKey  = []string{"graph", "build"}
	StoreSyncKey   = []string{"store", "sync"}
	StatusWriteKey = []string{"status", "write"}
)

type GraphMetrics struct {
	Rebuilds         prometheus.Counter
	Listeners        prometheus.Gauge
	VirtualHosts     prometheus.Gauge
	Routes           prometheus.Gauge
	InvalidDocuments prometheus.Gauge
}

type CacheMetrics struct {
	Documents prometheus.GaugeVec
}

type StatusMetrics struct {
	Writes        prometheus.Counter
	WriteFailures prometheus.Counter
}

type MetricsRegistry struct {
	Graph  *GraphMetrics
	Cache  *CacheMetrics
	Status *StatusMetrics
}

var Registry *MetricsRegistry

func init() {
	Registry = &MetricsRegistry{
		Graph: &GraphMetrics{
			Rebuilds: promauto.NewCounter(prometheus.CounterOpts{
				Name: "graph_rebuilds",
				Help: "The total number of graph rebuilds",
			}),
			Listeners: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "graph_listeners",
				Help: "The number of listeners in the published snapshot",
			}),
			VirtualHosts: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "graph_virtual_hosts",
				Help: "The number of virtual hosts in the published snapshot",
			}),
			Routes: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "graph_routes",
				Help: "The number of routes in the published snapshot",
			}),
			InvalidDocuments: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "graph_invalid_documents",
				Help: "The number of source documents the last build marked invalid",
			}),
		},
		Cache: &CacheMetrics{
			Documents: *promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "cache_documents",
				Help: "The number of cached documents per kind",
			}, []string{"kind"}),
		},
		Status: &StatusMetrics{
			Writes: promauto.NewCounter(prometheus.CounterOpts{
				Name: "status_writes",
				Help: "The total number of status records written",
			}),
			WriteFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "status_write_failures",
				Help: "The total number of status writes abandoned after retries",
			}),
		},
	}
}
