// Package metrics owns the instance's prometheus registry and the
// instruments the ledger, governor and bridge record into.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	mints            prometheus.Counter
	burns            prometheus.Counter
	transfers        prometheus.Counter
	bridgeOutbound   prometheus.Counter
	bridgeInbound    prometheus.Counter
	replaysRejected  prometheus.Counter
	operationsFailed *prometheus.CounterVec
	ceilingRate      prometheus.Gauge
	settleDuration   prometheus.Histogram
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		mints: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "ledger_mints_total",
			Help: "Total number of completed mint operations",
		}),
		burns: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "ledger_burns_total",
			Help: "Total number of completed burn operations",
		}),
		transfers: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Total number of completed transfers",
		}),
		bridgeOutbound: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "bridge_outbound_messages_total",
			Help: "Messages sent to peer instances",
		}),
		bridgeInbound: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "bridge_inbound_messages_total",
			Help: "Messages consumed from peer instances",
		}),
		replaysRejected: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "bridge_replays_rejected_total",
			Help: "Inbound messages rejected as duplicates",
		}),
		operationsFailed: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_failed_total",
			Help: "Failed operations by kind",
		}, []string{"op"}),
		ceilingRate: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "ledger_ceiling_rate",
			Help: "Current global ceiling rate as a fraction per second",
		}),
		settleDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_settle_duration_seconds",
			Help:    "Time spent in settle-then-mutate sections",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (c *Collector) MintCompleted() { c.mints.Inc() }

func (c *Collector) BurnCompleted() { c.burns.Inc() }

func (c *Collector) TransferCompleted() { c.transfers.Inc() }

func (c *Collector) OutboundSent() { c.bridgeOutbound.Inc() }

func (c *Collector) InboundConsumed() { c.bridgeInbound.Inc() }

func (c *Collector) ReplayRejected() { c.replaysRejected.Inc() }

func (c *Collector) OperationFailed(op string) {
	c.operationsFailed.WithLabelValues(op).Inc()
}

func (c *Collector) SetCeilingRate(fraction float64) {
	c.ceilingRate.Set(fraction)
}

func (c *Collector) ObserveSettle(seconds float64) {
	c.settleDuration.Observe(seconds)
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
