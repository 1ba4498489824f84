package obs

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"papertrade/internal/model/enum"
	"papertrade/internal/risk"
)

const (
	maxExitReason = int(enum.ExitManual)
	maxRule       = int(risk.RuleSignalStrength)
)

// Metrics collects lightweight counters of the trading loop. It is written
// by the loop goroutine and read by the metrics endpoint.
type Metrics struct {
	ticks        uint64
	opens        uint64
	closes       [maxExitReason + 1]uint64
	rejections   [maxRule + 1]uint64
	skipped      uint64
	errors       uint64
	equityBits   uint64
	cashBits     uint64
	openGauge    int64
	tickLatency  LatencyStats
	lastTickNano int64
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	Sum   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Ticks         uint64
	Opens         uint64
	Closes        map[enum.ExitReason]uint64
	Rejections    map[risk.Rule]uint64
	Skipped       uint64
	Errors        uint64
	Equity        float64
	Cash          float64
	OpenPositions int64
	LastTick      time.Time
	TickLatency   LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveTick records a finished tick and how long it took.
func (m *Metrics) ObserveTick(at time.Time, d time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ticks, 1)
	atomic.StoreInt64(&m.lastTickNano, at.UnixNano())
	m.tickLatency.Observe(d)
}

func (m *Metrics) IncOpen() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.opens, 1)
}

// IncClose increments the close counter of reason.
func (m *Metrics) IncClose(reason enum.ExitReason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.closes) {
		atomic.AddUint64(&m.closes[idx], 1)
	}
}

// IncRejection increments the rejection counter of rule.
func (m *Metrics) IncRejection(rule risk.Rule) {
	if m == nil {
		return
	}
	idx := int(rule)
	if idx >= 0 && idx < len(m.rejections) {
		atomic.AddUint64(&m.rejections[idx], 1)
	}
}

func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.skipped, 1)
}

func (m *Metrics) IncError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.errors, 1)
}

// SetAccount publishes the latest valuation. Gauges are float64: they are
// for display only.
func (m *Metrics) SetAccount(equity, cash decimal.Decimal, open int) {
	if m == nil {
		return
	}
	e, _ := equity.Float64()
	c, _ := cash.Float64()
	atomic.StoreUint64(&m.equityBits, math.Float64bits(e))
	atomic.StoreUint64(&m.cashBits, math.Float64bits(c))
	atomic.StoreInt64(&m.openGauge, int64(open))
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	closes := make(map[enum.ExitReason]uint64)
	for i := range m.closes {
		if v := atomic.LoadUint64(&m.closes[i]); v > 0 {
			closes[enum.ExitReason(i)] = v
		}
	}
	rejections := make(map[risk.Rule]uint64)
	for i := range m.rejections {
		if v := atomic.LoadUint64(&m.rejections[i]); v > 0 {
			rejections[risk.Rule(i)] = v
		}
	}
	var last time.Time
	if nano := atomic.LoadInt64(&m.lastTickNano); nano > 0 {
		last = time.Unix(0, nano).UTC()
	}
	return Snapshot{
		Ticks:         atomic.LoadUint64(&m.ticks),
		Opens:         atomic.LoadUint64(&m.opens),
		Closes:        closes,
		Rejections:    rejections,
		Skipped:       atomic.LoadUint64(&m.skipped),
		Errors:        atomic.LoadUint64(&m.errors),
		Equity:        math.Float64frombits(atomic.LoadUint64(&m.equityBits)),
		Cash:          math.Float64frombits(atomic.LoadUint64(&m.cashBits)),
		OpenPositions: atomic.LoadInt64(&m.openGauge),
		LastTick:      last,
		TickLatency:   m.tickLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
		Sum:   time.Duration(sum),
	}
}
