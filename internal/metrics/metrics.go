// Package metrics defines the Prometheus instrumentation for FieldPoint Core.
//
// Collectors are registered on the default registry; the API server exposes
// them at /metrics via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll results.
const (
	ResultSuccess     = "success"
	ResultFailure     = "failure"
	ResultUnreachable = "unreachable"
)

var (
	// PollCycles counts completed poll tasks per result.
	PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldpoint_poll_cycles_total",
		Help: "Poll tasks executed, by result.",
	}, []string{"result"})

	// PointReads counts per-point read outcomes.
	PointReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldpoint_point_reads_total",
		Help: "Individual point reads, by result.",
	}, []string{"result"})

	// PointWrites counts per-point write outcomes.
	PointWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldpoint_point_writes_total",
		Help: "Individual point writes, by result.",
	}, []string{"result"})

	// Publishes counts emitted publications by kind (multi, all).
	Publishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldpoint_publishes_total",
		Help: "Publications emitted, by kind.",
	}, []string{"kind"})

	// AllPublishSuppressed counts all-publish cycles suppressed by the
	// staleness gate or an incomplete first round.
	AllPublishSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldpoint_all_publish_suppressed_total",
		Help: "All-publish cycles suppressed to avoid emitting stale data.",
	})

	// GroupsPolling gauges how many remote groups are mid-request.
	GroupsPolling = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldpoint_groups_polling",
		Help: "Remote groups currently in the Requesting state.",
	})
)
