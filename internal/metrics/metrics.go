// Package metrics exposes relay counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coderoom"

//nolint:gochecknoglobals // collectors are registered once with the default registry
var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms_active",
		Help:      "Rooms currently holding at least one member.",
	})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections_active",
		Help:      "Open signalling connections.",
	})

	MembershipChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "membership_changes_total",
		Help:      "Joins and leaves processed, by op.",
	}, []string{"op"})

	EventsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_relayed_total",
		Help:      "Relay events accepted for fan-out, by kind and source.",
	}, []string{"kind", "source"})

	EventsDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_discarded_total",
		Help:      "Inbound events dropped before fan-out, by reason.",
	}, []string{"reason"})

	FramesShed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_shed_total",
		Help:      "Lossy frames dropped from congested outbound queues.",
	})

	MembersKicked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "members_kicked_total",
		Help:      "Connections closed because their outbound queue overflowed.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
