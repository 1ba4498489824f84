package obs

import (
	"github.com/prometheus/client_golang/prometheus"

	"papertrade/internal/model/enum"
	"papertrade/internal/risk"
)

const namespace = "papertrade"

var _ prometheus.Collector = (*Collector)(nil)

// Collector exports a Metrics snapshot to Prometheus on every scrape.
type Collector struct {
	metrics *Metrics

	ticks       *prometheus.Desc
	opens       *prometheus.Desc
	closes      *prometheus.Desc
	rejections  *prometheus.Desc
	skipped     *prometheus.Desc
	errors      *prometheus.Desc
	equity      *prometheus.Desc
	cash        *prometheus.Desc
	open        *prometheus.Desc
	tickSeconds *prometheus.Desc
}

func NewCollector(m *Metrics) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		metrics:     m,
		ticks:       desc("ticks_total", "Trading loop ticks completed."),
		opens:       desc("positions_opened_total", "Positions opened."),
		closes:      desc("positions_closed_total", "Positions closed by exit reason.", "reason"),
		rejections:  desc("signals_rejected_total", "Signals rejected by risk rule.", "rule"),
		skipped:     desc("instruments_skipped_total", "Instrument ticks skipped for missing or invalid data."),
		errors:      desc("errors_total", "Persistence and invariant errors."),
		equity:      desc("equity", "Portfolio value in quote currency."),
		cash:        desc("cash", "Cash balance in quote currency."),
		open:        desc("open_positions", "Open positions."),
		tickSeconds: desc("tick_duration_seconds", "Tick duration."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticks
	ch <- c.opens
	ch <- c.closes
	ch <- c.rejections
	ch <- c.skipped
	ch <- c.errors
	ch <- c.equity
	ch <- c.cash
	ch <- c.open
	ch <- c.tickSeconds
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(snap.Ticks))
	ch <- prometheus.MustNewConstMetric(c.opens, prometheus.CounterValue, float64(snap.Opens))
	for r := enum.ExitStopLoss; r.IsAvailable(); r++ {
		ch <- prometheus.MustNewConstMetric(c.closes, prometheus.CounterValue, float64(snap.Closes[r]), r.String())
	}
	for _, rule := range risk.Rules() {
		ch <- prometheus.MustNewConstMetric(c.rejections, prometheus.CounterValue, float64(snap.Rejections[rule]), rule.String())
	}
	ch <- prometheus.MustNewConstMetric(c.skipped, prometheus.CounterValue, float64(snap.Skipped))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(snap.Errors))
	ch <- prometheus.MustNewConstMetric(c.equity, prometheus.GaugeValue, snap.Equity)
	ch <- prometheus.MustNewConstMetric(c.cash, prometheus.GaugeValue, snap.Cash)
	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(snap.OpenPositions))
	ch <- prometheus.MustNewConstSummary(c.tickSeconds, snap.TickLatency.Count, snap.TickLatency.Sum.Seconds(), nil)
}
