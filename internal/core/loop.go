package core

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"papertrade/internal/errors"
	"papertrade/internal/marketdata"
	"papertrade/internal/model"
	"papertrade/internal/model/enum"
	"papertrade/internal/obs"
	"papertrade/internal/paper"
	"papertrade/internal/risk"
	"papertrade/internal/strategy"
	"papertrade/pkg/exception"
)

type Config struct {
	Instruments []string
	Timeframe   string
	CandleLimit int
}

// Rejection is a signal the trader refused. Rule is unset when the refusal
// was not a risk rule, e.g. insufficient cash.
type Rejection struct {
	Instrument string
	Strategy   string
	Rule       risk.Rule
	Reason     string
}

// TickReport summarises one tick.
type TickReport struct {
	Time     time.Time
	Closed   []model.Trade
	Opened   []model.Position
	Rejected []Rejection
	Skipped  map[string]error
	Errors   []error
	Equity   decimal.Decimal
	// Halted is set when today's losing streak stopped entries.
	Halted bool
}

type Option func(*Loop)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		l.now = now
	}
}

// WithMetrics publishes counters to m.
func WithMetrics(m *obs.Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// Loop drives the trader from a market data feed. Tick and Run must not be
// called concurrently.
type Loop struct {
	cfg        Config
	feed       marketdata.Feed
	trader     *paper.Trader
	strategies []strategy.Strategy
	metrics    *obs.Metrics
	now        func() time.Time
}

func NewLoop(cfg Config, feed marketdata.Feed, trader *paper.Trader, strategies []strategy.Strategy, opts ...Option) (*Loop, error) {
	if len(cfg.Instruments) == 0 {
		return nil, errors.Wrap(exception.ErrValidation, "loop: no instruments")
	}
	if len(strategies) == 0 {
		return nil, errors.Wrap(exception.ErrValidation, "loop: no strategies")
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = 200
	}

	l := &Loop{
		cfg:        cfg,
		feed:       feed,
		trader:     trader,
		strategies: slices.Clone(strategies),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run ticks immediately and then every interval until ctx is done.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.Wrapf(exception.ErrValidation, "loop interval %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report := l.Tick(ctx)
		logs.Infof("core tick done, opened: %d, closed: %d, rejected: %d, skipped: %d, errors: %d, equity: %s",
			len(report.Opened), len(report.Closed), len(report.Rejected), len(report.Skipped), len(report.Errors), report.Equity)

		select {
		case <-ctx.Done():
			logs.Info("core loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one pass: all exits are decided and executed before any entry
// is considered, and an instrument that held a position when the tick
// started is not offered an entry in the same tick.
func (l *Loop) Tick(ctx context.Context) TickReport {
	start := l.now()
	report := TickReport{
		Time:    model.UTC(start),
		Skipped: make(map[string]error),
	}

	candles, prices := l.fetch(ctx, &report)

	if _, err := l.trader.ResetDaily(ctx, prices); err != nil {
		l.fail(&report, err, "reset daily")
	}

	heldAtStart := make(map[string]bool)
	for _, p := range l.trader.Positions() {
		heldAtStart[p.Instrument] = true
	}

	l.exits(ctx, &report, candles, prices)
	if !l.haltOnLosses(ctx, &report, prices) {
		l.entries(ctx, &report, candles, prices, heldAtStart)
	}

	snap, err := l.trader.RecordEquity(ctx, prices)
	if err != nil {
		l.fail(&report, err, "record equity")
	}
	report.Equity = snap.Equity
	l.metrics.SetAccount(snap.Equity, snap.Cash, snap.OpenPositions)
	l.metrics.ObserveTick(report.Time, l.now().Sub(start))

	return report
}

func (l *Loop) fetch(ctx context.Context, report *TickReport) (map[string][]model.Candle, map[string]decimal.Decimal) {
	candles := make(map[string][]model.Candle, len(l.cfg.Instruments))
	prices := make(map[string]decimal.Decimal, len(l.cfg.Instruments))

	for _, inst := range l.cfg.Instruments {
		cs, err := l.feed.FetchCandles(ctx, inst, l.cfg.Timeframe, l.cfg.CandleLimit)
		if err == nil && len(cs) == 0 {
			err = errors.Wrapf(exception.ErrNotFound, "no candles for %s", inst)
		}
		if err == nil {
			err = validCandles(inst, cs)
		}
		if err != nil {
			report.Skipped[inst] = err
			l.metrics.IncSkipped()
			logs.Errorf("core fetch candles failed, instrument: %s, err: %+v", inst, err)
			continue
		}
		last, _ := model.Last(cs)
		candles[inst] = cs
		prices[inst] = last.Close
	}
	return candles, prices
}

func (l *Loop) exits(ctx context.Context, report *TickReport, candles map[string][]model.Candle, prices map[string]decimal.Decimal) {
	rm := l.trader.Risk()
	for _, p := range l.trader.Positions() {
		price, ok := prices[p.Instrument]
		if !ok {
			continue
		}
		decision := rm.ShouldCloseWith(p, price, candles[p.Instrument])
		if !decision.Close {
			continue
		}

		trade, err := l.trader.Close(ctx, p.Instrument, price, decision.Reason)
		if err != nil {
			l.fail(report, err, "close "+p.Instrument)
			continue
		}
		report.Closed = append(report.Closed, trade)
		l.metrics.IncClose(decision.Reason)
		logs.Infof("core exit, instrument: %s, reason: %s, detail: %s", p.Instrument, decision.Reason, decision.Detail)
	}
}

// haltOnLosses liquidates the book and reports true once today's losing
// streak reached the configured limit. It stays tripped until the daily
// anchor moves.
func (l *Loop) haltOnLosses(ctx context.Context, report *TickReport, prices map[string]decimal.Decimal) bool {
	rm := l.trader.Risk()
	limit := rm.Limits().MaxConsecutiveLosses
	if limit == 0 {
		return false
	}

	recent, err := l.trader.TradesToday(ctx, limit)
	if err != nil {
		l.fail(report, err, "loss streak")
		return false
	}
	streak, halt := rm.LossStreak(recent)
	if !halt {
		return false
	}
	report.Halted = true

	if len(l.trader.Positions()) == 0 {
		return true
	}
	logs.Infof("core loss streak halt, streak: %d, limit: %d, liquidating", streak, limit)
	trades, err := l.trader.Liquidate(ctx, prices, enum.ExitLiquidation)
	for _, trade := range trades {
		report.Closed = append(report.Closed, trade)
		l.metrics.IncClose(enum.ExitLiquidation)
	}
	if err != nil {
		l.fail(report, err, "liquidate")
	}
	return true
}

func (l *Loop) entries(ctx context.Context, report *TickReport, candles map[string][]model.Candle, prices map[string]decimal.Decimal, heldAtStart map[string]bool) {
	for _, inst := range l.cfg.Instruments {
		if heldAtStart[inst] {
			continue
		}
		if _, ok := l.trader.Position(inst); ok {
			continue
		}
		cs, ok := candles[inst]
		if !ok {
			continue
		}
		l.enter(ctx, report, inst, cs, prices)
	}
}

func (l *Loop) enter(ctx context.Context, report *TickReport, inst string, candles []model.Candle, prices map[string]decimal.Decimal) {
	for _, s := range l.strategies {
		signal, ok := s.Analyze(candles)
		if !ok {
			continue
		}
		if signal.Instrument != inst {
			l.fail(report, errors.Wrapf(exception.ErrValidation, "strategy %s signalled %s for %s", s.Name(), signal.Instrument, inst), "analyze")
			continue
		}

		position, err := l.trader.Open(ctx, signal, prices)
		if err == nil {
			report.Opened = append(report.Opened, position)
			l.metrics.IncOpen()
			return
		}

		var rejected *paper.RejectedError
		switch {
		case errors.As(err, &rejected):
			report.Rejected = append(report.Rejected, Rejection{Instrument: inst, Strategy: s.Name(), Rule: rejected.Rule, Reason: rejected.Reason})
			l.metrics.IncRejection(rejected.Rule)
		case errors.Is(err, exception.ErrInsufficientBalance):
			report.Rejected = append(report.Rejected, Rejection{Instrument: inst, Strategy: s.Name(), Reason: err.Error()})
			logs.Infof("core entry skipped, instrument: %s, strategy: %s, err: %+v", inst, s.Name(), err)
		default:
			l.fail(report, err, "open "+inst)
			return
		}
	}
}

func (l *Loop) fail(report *TickReport, err error, what string) {
	report.Errors = append(report.Errors, err)
	l.metrics.IncError()
	logs.Errorf("core %s failed, err: %+v", what, err)
}

// validCandles rejects a history with a malformed candle or one that belongs
// to another instrument.
func validCandles(inst string, candles []model.Candle) error {
	for i, c := range candles {
		if err := c.Validate(); err != nil {
			return errors.Wrapf(err, "candle %d of %s", i, inst)
		}
		if c.Instrument != inst {
			return errors.Wrapf(exception.ErrValidation, "candle %d of %s is for %s", i, inst, c.Instrument)
		}
	}
	return nil
}

// SkippedInstruments lists the skipped instruments of a report in order.
func (r TickReport) SkippedInstruments() []string {
	return slices.Sorted(maps.Keys(r.Skipped))
}
