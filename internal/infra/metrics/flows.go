// File: internal/infra/metrics/flows.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	flowsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_flows_started_total",
			Help: "Conversational flows started, per flow kind and transport.",
		},
		[]string{"flow", "transport"},
	)

	flowsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_flows_completed_total",
			Help: "Flows that reached their terminal commit.",
		},
		[]string{"flow", "transport"},
	)

	flowsCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_flows_cancelled_total",
			Help: "Flows cleared by an explicit /cancel.",
		},
		[]string{"flow", "transport"},
	)

	flowsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_flows_failed_total",
			Help: "Flows discarded by the router's catch-all error handler.",
		},
		[]string{"flow", "transport"},
	)

	validationRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_flow_validation_rejects_total",
			Help: "Step inputs rejected by validation (same step re-prompted).",
		},
		[]string{"flow", "step"},
	)

	stepLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_flow_step_latency_ms",
			Help:    "Step handler latency distribution in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 3000},
		},
		[]string{"flow"},
	)

	sendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_transport_send_errors_total",
			Help: "Outbound message failures, per transport.",
		},
		[]string{"transport"},
	)

	noticesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_expiry_notices_sent_total",
			Help: "Expiry reminders delivered by the scheduler.",
		},
	)
)

func FlowStarted(flow, transport string)   { flowsStarted.WithLabelValues(flow, transport).Inc() }
func FlowCompleted(flow, transport string) { flowsCompleted.WithLabelValues(flow, transport).Inc() }
func FlowCancelled(flow, transport string) { flowsCancelled.WithLabelValues(flow, transport).Inc() }
func FlowFailed(flow, transport string)    { flowsFailed.WithLabelValues(flow, transport).Inc() }

func ValidationRejected(flow, step string) { validationRejects.WithLabelValues(flow, step).Inc() }

func ObserveStepLatency(flow string, ms float64) { stepLatencyMs.WithLabelValues(flow).Observe(ms) }

func SendError(transport string) { sendErrors.WithLabelValues(transport).Inc() }

func NoticeSent() { noticesSent.Inc() }
