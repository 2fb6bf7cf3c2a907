// Package metrics exposes money-movement counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Recorder is what services report to. Implementations must be safe for concurrent use.
type Recorder interface {
	RecordTransfer(transferType, outcome string, amount decimal.Decimal, duration time.Duration)
	RecordWebhook(source, result string)
	RecordFunding(outcome string, amount decimal.Decimal)
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
	RecordSweep(job string, handled int)
}

type Collector struct {
	registry         *prometheus.Registry
	transfers        *prometheus.CounterVec
	transferAmount   *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
	webhooks         *prometheus.CounterVec
	funding          *prometheus.CounterVec
	fundingAmount    prometheus.Counter
	cacheLookups     *prometheus.CounterVec
	sweepHandled     *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector registers every metric on a private registry along with the Go runtime
// and process collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		transfers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Transfers by type and outcome",
		}, []string{"transfer_type", "outcome"}),
		transferAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transfer_amount_total",
			Help: "Sum of transferred amounts accepted by the engine",
		}, []string{"transfer_type"}),
		transferDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_transfer_duration_seconds",
			Help:    "Time taken to execute a transfer",
			Buckets: prometheus.DefBuckets,
		}, []string{"transfer_type"}),
		webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_webhook_events_total",
			Help: "Gateway webhook events by source and result",
		}, []string{"source", "result"}),
		funding: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_funding_total",
			Help: "Wallet funding outcomes",
		}, []string{"outcome"}),
		fundingAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_funding_amount_total",
			Help: "Sum of amounts credited by settled fundings",
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_cache_lookups_total",
			Help: "Cache lookups by cache and result",
		}, []string{"cache", "result"}),
		sweepHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_sweep_handled_total",
			Help: "Items handled by the reconciliation sweep",
		}, []string{"job"}),
	}
}

func (c *Collector) RecordTransfer(transferType, outcome string, amount decimal.Decimal, duration time.Duration) {
	c.transfers.WithLabelValues(transferType, outcome).Inc()
	c.transferDuration.WithLabelValues(transferType).Observe(duration.Seconds())
	if outcome != "rejected" {
		c.transferAmount.WithLabelValues(transferType).Add(amount.InexactFloat64())
	}
}

func (c *Collector) RecordWebhook(source, result string) {
	c.webhooks.WithLabelValues(source, result).Inc()
}

func (c *Collector) RecordFunding(outcome string, amount decimal.Decimal) {
	c.funding.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		c.fundingAmount.Add(amount.InexactFloat64())
	}
}

func (c *Collector) RecordCacheHit(cache string) {
	c.cacheLookups.WithLabelValues(cache, "hit").Inc()
}

func (c *Collector) RecordCacheMiss(cache string) {
	c.cacheLookups.WithLabelValues(cache, "miss").Inc()
}

func (c *Collector) RecordSweep(job string, handled int) {
	c.sweepHandled.WithLabelValues(job).Add(float64(handled))
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Noop discards everything.
type Noop struct{}

func (Noop) RecordTransfer(string, string, decimal.Decimal, time.Duration) {}
func (Noop) RecordWebhook(string, string)                                 {}
func (Noop) RecordFunding(string, decimal.Decimal)                        {}
func (Noop) RecordCacheHit(string)                                        {}
func (Noop) RecordCacheMiss(string)                                       {}
func (Noop) RecordSweep(string, int)                                      {}
