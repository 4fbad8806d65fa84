package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CrudOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablegate_crud_ops_total",
		Help: "Dynamic CRUD operations by table, operation and outcome",
	}, []string{"table", "operation", "status"})

	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tablegate_audit_write_failures_total",
		Help: "Audit records that could not be durably persisted in time",
	})

	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablegate_login_attempts_total",
		Help: "Authentication attempts by result",
	}, []string{"result"})

	GateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablegate_gate_rejections_total",
		Help: "Requests rejected by the security gate",
	}, []string{"stage"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tablegate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
