package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ganeti_nodes_total",
			Help: "Total number of nodes by role",
		},
		[]string{"role"},
	)

	InstancesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ganeti_instances_total",
			Help: "Total number of instances by admin state",
		},
		[]string{"admin_state"},
	)

	GroupsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ganeti_groups_total",
			Help: "Total number of node groups",
		},
	)

	// Job queue metrics
	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ganeti_jobs_total",
			Help: "Number of jobs in the queue by status",
		},
		[]string{"status"},
	)

	JobsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ganeti_jobs_submitted_total",
			Help: "Total number of jobs submitted",
		},
	)

	JobsArchived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ganeti_jobs_archived_total",
			Help: "Total number of jobs archived",
		},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ganeti_job_duration_seconds",
			Help:    "Time taken to run a job, by final status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// LUXI metrics
	LuxiConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ganeti_luxi_connections",
			Help: "Number of open LUXI connections",
		},
	)

	LuxiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ganeti_luxi_requests_total",
			Help: "Total number of LUXI requests by method and status",
		},
		[]string{"method", "status"},
	)

	LuxiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ganeti_luxi_request_duration_seconds",
			Help:    "LUXI request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Query metrics
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ganeti_query_duration_seconds",
			Help:    "Query execution time in seconds by resource kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	CollectionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ganeti_live_collection_duration_seconds",
			Help:    "Time taken to collect live data from node agents",
			Buckets: prometheus.DefBuckets,
		},
	)

	CollectionFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ganeti_live_collection_failures_total",
			Help: "Total number of failed per-node live data collections",
		},
	)
)

func init() {
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(InstancesTotal)
	prometheus.MustRegister(GroupsTotal)
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobsSubmitted)
	prometheus.MustRegister(JobsArchived)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(LuxiConnections)
	prometheus.MustRegister(LuxiRequestsTotal)
	prometheus.MustRegister(LuxiRequestDuration)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(CollectionDuration)
	prometheus.MustRegister(CollectionFailures)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
