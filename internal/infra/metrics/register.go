// File: internal/infra/metrics/register.go
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registerOnce sync.Once

// Register installs all collectors on the default registerer. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			flowsStarted,
			flowsCompleted,
			flowsCancelled,
			flowsFailed,
			validationRejects,
			stepLatencyMs,
			sendErrors,
			noticesSent,
		)
	})
}

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
