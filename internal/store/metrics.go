package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Best-effort operational counters, exposed on /metrics alongside the
// default process collectors.
var (
	recordsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hearth_store_records_created_total",
		Help: "Records accepted by Create across all drivers.",
	})
	recordsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hearth_store_records_deleted_total",
		Help: "Records removed by DeleteByID.",
	})
	deletesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hearth_store_deletes_rejected_total",
		Help: "Delete attempts rejected by the authorship check.",
	})
	snapshotsFanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hearth_store_snapshots_delivered_total",
		Help: "Snapshot deliveries fanned out to open subscriptions.",
	})
)
