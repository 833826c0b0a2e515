// Package metrics holds the prometheus collectors for ledger operations. They
// register with the default registry, which api serves on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var TransactionsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "credit_ledger",
	Subsystem: "ledger",
	Name:      "transactions_committed_total",
	Help:      "Transactions appended to the ledger, by type.",
}, []string{"type"})

var DebitsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "credit_ledger",
	Subsystem: "ledger",
	Name:      "debits_rejected_total",
	Help:      "Debits refused for insufficient credit.",
})

var CommitConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "credit_ledger",
	Subsystem: "operator",
	Name:      "commit_conflicts_total",
	Help:      "Commits that lost an optimistic concurrency race and were retried.",
})

var LotsLapsed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "credit_ledger",
	Subsystem: "ledger",
	Name:      "lots_lapsed_total",
	Help:      "Lots whose remainder was forfeited at expiration.",
})

var ActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "credit_ledger",
	Subsystem: "operator",
	Name:      "action_duration_seconds",
	Help:      "Time from dequeue to response for operator actions, retries included.",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
}, []string{"action", "outcome"})

var QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "credit_ledger",
	Subsystem: "operator",
	Name:      "queue_depth",
	Help:      "Actions waiting for an operator worker.",
})
