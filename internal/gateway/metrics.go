package gateway

import (
	"errors"

	"github.com/flemzord/tgcourier/internal/delivery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "tgcourier"

// statsCounter maps one StatsSnapshot field to a Prometheus counter.
type statsCounter struct {
	desc  *prometheus.Desc
	value func(delivery.StatsSnapshot) int64
}

// statsCollector exposes Deliverer counters. Values are read at scrape time
// so the delivery package stays free of Prometheus types.
type statsCollector struct {
	stats    func() delivery.StatsSnapshot
	counters []statsCounter
}

func newStatsCollector(stats func() delivery.StatsSnapshot) *statsCollector {
	counter := func(name, help string, value func(delivery.StatsSnapshot) int64) statsCounter {
		return statsCounter{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "delivery", name), help, nil, nil),
			value: value,
		}
	}

	return &statsCollector{
		stats: stats,
		counters: []statsCounter{
			counter("sends_total", "Send requests fully delivered.", func(s delivery.StatsSnapshot) int64 { return s.Sends }),
			counter("edits_total", "Edit requests applied.", func(s delivery.StatsSnapshot) int64 { return s.Edits }),
			counter("chunks_total", "Chunks accepted by the Bot API.", func(s delivery.StatsSnapshot) int64 { return s.Chunks }),
			counter("not_modified_total", "Edits answered with message is not modified.", func(s delivery.StatsSnapshot) int64 { return s.NotModified }),
			counter("throttled_total", "Rate limit answers from the Bot API.", func(s delivery.StatsSnapshot) int64 { return s.Throttled }),
			counter("retries_total", "Backoff retries after transient failures.", func(s delivery.StatsSnapshot) int64 { return s.Retries }),
			counter("resplits_total", "Chunks split again after a too long answer.", func(s delivery.StatsSnapshot) int64 { return s.Resplits }),
			counter("markup_fallbacks_total", "Requests downgraded to plain text.", func(s delivery.StatsSnapshot) int64 { return s.MarkupFallbacks }),
			counter("truncations_total", "Texts cut to fit the length limit.", func(s delivery.StatsSnapshot) int64 { return s.Truncations }),
			counter("failures_total", "Send or edit requests that failed.", func(s delivery.StatsSnapshot) int64 { return s.Failures }),
			counter("limiter_waits_total", "Sends delayed by the local rate limiter.", func(s delivery.StatsSnapshot) int64 { return s.LimiterWaits }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, sc := range c.counters {
		ch <- sc.desc
	}
}

// Collect implements prometheus.Collector.
func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.stats()
	for _, sc := range c.counters {
		ch <- prometheus.MustNewConstMetric(sc.desc, prometheus.CounterValue, float64(sc.value(snap)))
	}
}

func newRequestCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "HTTP requests served by the admin gateway.",
	}, []string{"method", "route", "code"})
}

// registerMetrics installs the delivery, gateway and runtime collectors.
func registerMetrics(reg prometheus.Registerer, requests *prometheus.CounterVec, stats func() delivery.StatsSnapshot) error {
	return errors.Join(
		reg.Register(newStatsCollector(stats)),
		reg.Register(requests),
		reg.Register(collectors.NewGoCollector()),
		reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})),
	)
}
