package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(gatewayCallLatencyMs) }

var gatewayCallLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gateway_call_latency_ms",
		Help:    "Payment gateway HTTP call latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
	},
	[]string{"endpoint", "success"},
)

func ObserveGatewayCall(endpoint string, latencyMs int, success bool) {
	gatewayCallLatencyMs.WithLabelValues(norm(endpoint), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}
