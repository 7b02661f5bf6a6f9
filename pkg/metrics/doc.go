/*
Package metrics provides Prometheus metrics collection and exposition for
the replication core.

Metrics are defined and registered at package init using the Prometheus
client library and are exposed over HTTP for scraping.

# Metrics Catalog

galera_last_committed_seqno (gauge): process-wide last_committed_trx.

galera_certification_conflicts_total{kind} (counter): certification
conflicts, labelled "soft" (table-hash, tolerated when replaying RBR) or
"hard" (row-hash, always rejected).

galera_to_queue_depth / galera_commit_queue_depth (gauge): head position
of each ordered delivery queue.

galera_job_queue_active_workers (gauge): applier workers currently
running a parallel-apply job.

galera_purge_total (counter): advances of the certification-index purge
bound seen by the collector; several purges between two collections
count once.

galera_cert_index_active_size (gauge): write-sets retained in the
active-seqno list.

galera_local_commit_duration_seconds (histogram): BeginCommit to
commit_queue grab latency.

galera_flow_control_waits_total (counter): local commits that blocked on
flow control.

The Collector sets last_committed_seqno, both queue gauges and
cert_index_active_size, and advances purge_total, on every collection.
certification_conflicts_total, job_queue_active_workers,
local_commit_duration_seconds and flow_control_waits_total are
registered and exposed, but nothing in this module records into them.

# Usage

	collector := metrics.NewCollector(coord)
	collector.Start()
	defer collector.Stop()

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
*/
package metrics
