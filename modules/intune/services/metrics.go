package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bulkMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intune",
		Subsystem: "bulk",
		Name:      "mutations_total",
		Help:      "Total number of per-assignment mutations broken down by operation and result.",
	}, []string{"operation", "result"})

	bulkBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intune",
		Subsystem: "bulk",
		Name:      "batches_total",
		Help:      "Total number of bulk submissions broken down by operation and status.",
	}, []string{"operation", "status"})

	nameResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intune",
		Subsystem: "names",
		Name:      "resolutions_total",
		Help:      "Total number of name resolutions broken down by kind and the step that answered.",
	}, []string{"kind", "step"})

	cacheRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intune",
		Subsystem: "cache",
		Name:      "refresh_total",
		Help:      "Total number of authoritative assignment refreshes broken down by result.",
	}, []string{"result"})
)

func recordMutation(op OperationKind, ok bool) {
	result := "error"
	if ok {
		result = "success"
	}
	bulkMutations.WithLabelValues(string(op), result).Inc()
}

func recordBatch(op OperationKind, status BulkStatus) {
	bulkBatches.WithLabelValues(string(op), string(status)).Inc()
}

func recordResolution(kind, step string) {
	nameResolutions.WithLabelValues(kind, step).Inc()
}

func recordRefresh(ok bool) {
	result := "error"
	if ok {
		result = "success"
	}
	cacheRefreshes.WithLabelValues(result).Inc()
}
