/*
Package metrics exposes luxid state to Prometheus and health probes.

# Metrics

All metrics are registered on the default registry at package init.

	ganeti_nodes_total{role}, ganeti_instances_total{admin_state},
	ganeti_groups_total
	    configuration gauges, sampled by Collector
	ganeti_jobs_total{status}
	    jobs currently in the queue, sampled by Collector
	ganeti_jobs_submitted_total, ganeti_jobs_archived_total
	ganeti_job_duration_seconds{status}
	ganeti_luxi_connections
	ganeti_luxi_requests_total{method,status}
	ganeti_luxi_request_duration_seconds{method}
	ganeti_query_duration_seconds{kind}
	ganeti_live_collection_duration_seconds
	ganeti_live_collection_failures_total

Durations are recorded with Timer:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.QueryDuration, string(kind))

# Status Server

StatusServer serves /metrics, /health, /ready and /live over HTTP.
Components report their state with RegisterComponent. /ready fails until
the store, the job queue and the LUXI sockets are up. /health answers 503
when one of them fails and reports "degraded" when only another component
does, such as a data file reload.
*/
package metrics
