package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartsync_remote_requests_total",
			Help: "Cart API calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	remoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cartsync_remote_request_duration_seconds",
			Help:    "Cart API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

const (
	opFetch = "fetch_cart"
	opAdd   = "add_item"
)

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(kindOf(err))
}
