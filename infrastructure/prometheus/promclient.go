package promclient

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var OpenOrderBookTrackersGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "orderbook_open_trackers",
		Help: "number of live order book trackers",
	},
)

var SubscriptionsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "orderbook_subscriptions",
		Help: "number of subscribers holding a subscription",
	},
)

var AppliedUpdatesCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderbook_applied_updates_total",
		Help: "diff events applied to a book",
	},
	[]string{"symbol"},
)

var AbnormalFeedDelayCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderbook_abnormal_feed_delay_total",
		Help: "gaps between feed messages above the latency threshold",
	},
	[]string{"symbol"},
)

var ResyncCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderbook_resyncs_total",
		Help: "snapshot resynchronizations after a sequence gap",
	},
	[]string{"symbol"},
)

var TrackerFailuresCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderbook_tracker_failures_total",
		Help: "trackers terminated by an error",
	},
	[]string{"symbol"},
)

var RelayDroppedCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderbook_relay_dropped_total",
		Help: "book updates dropped because a relay sink was full",
	},
	[]string{"sink"},
)

// NewRegistry returns a registry with every gateway collector registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(OpenOrderBookTrackersGauge)
	reg.MustRegister(SubscriptionsGauge)
	reg.MustRegister(AppliedUpdatesCounter)
	reg.MustRegister(AbnormalFeedDelayCounter)
	reg.MustRegister(ResyncCounter)
	reg.MustRegister(TrackerFailuresCounter)
	reg.MustRegister(RelayDroppedCounter)
	reg.MustRegister(collectors.NewGoCollector())

	return reg
}

// NewServer builds the /metrics http server; the caller owns its lifecycle.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(NewRegistry(), promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
