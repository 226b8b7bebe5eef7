// Package metrics holds the provisioner's prometheus collectors.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imamik/oscp/internal/resource"
)

// Registry is the registry every oscp collector is registered with.
var Registry = prometheus.NewRegistry()

var (
	// Request-level metrics
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oscp",
			Name:      "operations_total",
			Help:      "Total number of provisioning operations by result",
		},
		[]string{"operation", "result"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oscp",
			Name:      "operation_duration_seconds",
			Help:      "Duration of provisioning operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
		},
		[]string{"operation"},
	)

	// Compensation metrics
	rollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oscp",
			Name:      "rollbacks_total",
			Help:      "Total number of compensating actions run by command and result",
		},
		[]string{"command", "result"},
	)

	// Shared network metrics
	networkEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oscp",
			Subsystem: "network",
			Name:      "events_total",
			Help:      "VLAN network lifecycle events: created, reused, subnet_created, removed",
		},
		[]string{"event"},
	)

	// OpenStack API metrics
	apiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oscp",
			Subsystem: "openstack",
			Name:      "api_calls_total",
			Help:      "Total number of OpenStack API calls by call and result",
		},
		[]string{"call", "result"},
	)

	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oscp",
			Subsystem: "openstack",
			Name:      "api_call_duration_seconds",
			Help:      "Latency of OpenStack API calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		},
		[]string{"call"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		operationsTotal,
		operationDuration,
		rollbacksTotal,
		networkEventsTotal,
		apiCallsTotal,
		apiLatency,
	)
}

// Handler serves the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Result turns an operation outcome into a low-cardinality label: "success",
// the snake-cased error kind, or "error" for unclassified failures.
func Result(err error) string {
	if err == nil {
		return "success"
	}
	if k := resource.KindOf(err); k != "" {
		return toSnake(string(k))
	}
	return "error"
}

// RecordOperation records a finished top-level operation such as set_vlan.
func RecordOperation(operation string, err error, duration time.Duration) {
	operationsTotal.WithLabelValues(operation, Result(err)).Inc()
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRollback records one compensating action.
func RecordRollback(command string, err error) {
	rollbacksTotal.WithLabelValues(command, Result(err)).Inc()
}

// RecordNetworkEvent records a VLAN network lifecycle event.
func RecordNetworkEvent(event string) {
	networkEventsTotal.WithLabelValues(event).Inc()
}

// RecordAPICall records one OpenStack API call.
func RecordAPICall(call string, err error, latency time.Duration) {
	apiCallsTotal.WithLabelValues(call, Result(err)).Inc()
	apiLatency.WithLabelValues(call).Observe(latency.Seconds())
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
