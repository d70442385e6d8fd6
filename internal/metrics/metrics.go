package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "openbas"
)

var (
	reconcileDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

	// Reconciliation Metrics
	ReconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reconcile_duration_seconds",
		Help:      "Time taken for one integration reconciliation pass.",
		Buckets:   reconcileDurationBuckets,
	}, []string{"status"})

	ReconcilePassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_passes_total",
		Help:      "Count of integration reconciliation passes.",
	}, []string{"status"})

	ReconcileLastSuccessTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reconcile_last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful reconciliation pass.",
	})

	// Integration Metrics
	IntegrationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "integration_transitions_total",
		Help:      "Count of integration lifecycle transitions.",
	}, []string{"factory", "transition", "result"})

	IntegrationsStarted = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "integrations_started",
		Help:      "Number of integrations currently started.",
	}, []string{"factory"})

	IntegrationsKnown = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "integrations_known",
		Help:      "Number of integrations tracked by the manager.",
	}, []string{"factory"})

	IntegrationTaskRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "integration_task_runs_total",
		Help:      "Count of periodic integration task executions.",
	}, []string{"factory", "task", "status"})

	ComponentRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "component_requests_total",
		Help:      "Count of capability requests routed through started integrations.",
	}, []string{"result"})

	// Lock Metrics
	ManagerLockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "manager_lock_wait_seconds",
		Help:      "Time spent waiting for the manager-factory lock.",
		Buckets:   prometheus.DefBuckets,
	})
)
