package graph

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var graphRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "intune",
	Subsystem: "graph",
	Name:      "requests_total",
	Help:      "Total number of Graph API calls broken down by operation and status.",
}, []string{"op", "status"})

func recordRequest(op string, status int, err error) {
	label := strconv.Itoa(status)
	if status == 0 && err != nil {
		label = "transport_error"
	}
	graphRequests.WithLabelValues(op, label).Inc()
}
