package paper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"papertrade/internal/errors"
	"papertrade/internal/model"
	"papertrade/internal/model/enum"
	"papertrade/internal/risk"
	"papertrade/internal/state"
	"papertrade/internal/store"
	"papertrade/pkg/exception"
)

type Option func(*Trader)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Trader) {
		t.now = now
	}
}

// WithIDGenerator replaces the position id generator.
func WithIDGenerator(newID func() string) Option {
	return func(t *Trader) {
		t.newID = newID
	}
}

func newPositionID() string {
	return "pos_" + uuid.NewString()
}

// Trader executes signals against virtual capital. Cash in memory is only
// replaced after the store committed the matching position change.
//
// It is not safe for concurrent use.
type Trader struct {
	store     store.Store
	positions *state.PositionManager
	risk      *risk.Manager
	fill      model.FillModel
	initial   decimal.Decimal

	now   func() time.Time
	newID func() string

	account model.AccountState
	ready   bool
}

func NewTrader(s store.Store, positions *state.PositionManager, rm *risk.Manager, fill model.FillModel, initial decimal.Decimal, opts ...Option) (*Trader, error) {
	if err := fill.Validate(); err != nil {
		return nil, errors.Wrap(err, "fill model")
	}
	if !initial.IsPositive() {
		return nil, errors.Wrapf(exception.ErrValidation, "initial balance %s must be positive", initial)
	}

	t := &Trader{
		store:     s,
		positions: positions,
		risk:      rm,
		fill:      fill,
		initial:   initial,
		now:       time.Now,
		newID:     newPositionID,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Init loads the account row, creating it on first run, and the open positions.
func (t *Trader) Init(ctx context.Context) error {
	account, ok, err := t.store.Account(ctx)
	if err != nil {
		return errors.Wrap(err, "load account")
	}
	if !ok {
		account, err = model.NewAccountState(t.initial, t.now())
		if err != nil {
			return err
		}
		if err := t.store.PutAccount(ctx, account); err != nil {
			return errors.Wrap(err, "create account")
		}
		logs.Infof("paper account created, cash: %s", account.Cash)
	}

	if err := t.positions.Load(ctx); err != nil {
		return err
	}

	t.account = account
	t.ready = true
	logs.Infof("paper trader ready, cash: %s, open positions: %d", account.Cash, t.positions.Count())
	return nil
}

func (t *Trader) Account() model.AccountState {
	return t.account
}

func (t *Trader) Positions() []model.Position {
	return t.positions.AllOpen()
}

// Position returns the open position of instrument.
func (t *Trader) Position(instrument string) (model.Position, bool) {
	return t.positions.Get(instrument)
}

func (t *Trader) Risk() *risk.Manager {
	return t.risk
}

// PortfolioValue is cash plus the entry notional and unrealized profit of
// every open position. Positions without a price count at entry notional.
func (t *Trader) PortfolioValue(prices map[string]decimal.Decimal) decimal.Decimal {
	value := t.account.Cash
	for _, p := range t.positions.AllOpen() {
		value = value.Add(p.Notional())
		if price, ok := prices[p.Instrument]; ok && price.IsPositive() {
			value = value.Add(p.UnrealizedPnL(price))
		}
	}
	return value
}

// UnrealizedPnL sums the unrealized profit of the positions with a known price.
func (t *Trader) UnrealizedPnL(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range t.positions.AllOpen() {
		if price, ok := prices[p.Instrument]; ok && price.IsPositive() {
			total = total.Add(p.UnrealizedPnL(price))
		}
	}
	return total
}

// Open admits, sizes and fills signal at prices[signal.Instrument]. The whole
// price map values the open book, so unrealized losses count against the
// daily loss limit and the position size.
func (t *Trader) Open(ctx context.Context, signal model.Signal, prices map[string]decimal.Decimal) (model.Position, error) {
	if err := t.checkReady(); err != nil {
		return model.Position{}, err
	}
	if err := signal.Validate(); err != nil {
		return model.Position{}, err
	}
	price := prices[signal.Instrument]
	if !price.IsPositive() {
		return model.Position{}, errors.Wrapf(exception.ErrInvalidPrice, "open %s at %s", signal.Instrument, price)
	}

	value := t.PortfolioValue(prices)
	decision := t.risk.CanOpen(signal, t.positions.AllOpen(), value, t.account.StartingBalance)
	if !decision.Allowed {
		logs.Infof("paper open rejected, instrument: %s, strategy: %s, rule: %s, reason: %s",
			signal.Instrument, signal.Strategy, decision.Rule, decision.Reason)
		return model.Position{}, &RejectedError{Instrument: signal.Instrument, Rule: decision.Rule, Reason: decision.Reason}
	}

	quantity, err := t.risk.SizeFor(value, price)
	if err != nil {
		return model.Position{}, err
	}

	direction := signal.Direction()
	filled := t.fill.EntryPrice(direction, price)
	commission := t.fill.Commission(quantity, filled)
	cost := quantity.Mul(filled).Add(commission)
	if cost.GreaterThan(t.account.Cash) {
		return model.Position{}, errors.Wrapf(exception.ErrInsufficientBalance, "open %s: cost %s, cash %s", signal.Instrument, cost, t.account.Cash)
	}

	now := t.now()
	position, err := model.NewOpenPosition(t.newID(), signal.Instrument, direction, filled, quantity, now, commission, signal.Strategy)
	if err != nil {
		return model.Position{}, err
	}

	next := t.account.WithCash(t.account.Cash.Sub(cost), now)
	if err := t.positions.Open(ctx, position, putAccount(next)); err != nil {
		return model.Position{}, err
	}
	t.account = next

	logs.Infof("paper opened, id: %s, instrument: %s, direction: %s, qty: %s, price: %s, commission: %s, cash: %s",
		position.ID, position.Instrument, position.Direction, position.Quantity, position.EntryPrice, commission, next.Cash)
	return position, nil
}

// Close fills the open position of instrument at price.
func (t *Trader) Close(ctx context.Context, instrument string, price decimal.Decimal, reason enum.ExitReason) (model.Trade, error) {
	if err := t.checkReady(); err != nil {
		return model.Trade{}, err
	}
	position, ok := t.positions.Get(instrument)
	if !ok {
		return model.Trade{}, errors.Wrapf(exception.ErrNoOpenPosition, "close %s", instrument)
	}
	if !price.IsPositive() {
		return model.Trade{}, errors.Wrapf(exception.ErrInvalidPrice, "close %s at %s", instrument, price)
	}

	filled := t.fill.ExitPrice(position.Direction, price)
	commission := t.fill.Commission(position.Quantity, filled)
	// the reserved entry notional comes back with the gross profit
	proceeds := position.Notional().Add(position.UnrealizedPnL(filled)).Sub(commission)

	now := t.now()
	next := t.account.WithCash(t.account.Cash.Add(proceeds), now)
	_, trade, err := t.positions.Close(ctx, instrument, filled, commission, reason.String(), now, putAccount(next))
	if err != nil {
		return model.Trade{}, err
	}
	t.account = next

	logs.Infof("paper closed, id: %s, instrument: %s, reason: %s, price: %s, pnl: %s, net: %s, cash: %s",
		trade.PositionID, instrument, trade.ExitReason, trade.ExitPrice, trade.PnL, trade.NetPnL, next.Cash)
	return trade, nil
}

// ResetDaily re-anchors the daily loss breaker at the current portfolio
// value once the UTC day has changed. It reports whether it did.
func (t *Trader) ResetDaily(ctx context.Context, prices map[string]decimal.Decimal) (bool, error) {
	if err := t.checkReady(); err != nil {
		return false, err
	}
	now := t.now()
	if !t.account.NeedsReset(now) {
		return false, nil
	}

	next := t.account.Rebase(t.PortfolioValue(prices), now)
	if err := t.store.PutAccount(ctx, next); err != nil {
		return false, errors.Wrap(err, "reset daily")
	}
	t.account = next

	logs.Infof("paper daily reset, starting balance: %s", next.StartingBalance)
	return true, nil
}

// TradesToday returns up to limit of the latest trades closed since the daily
// anchor, oldest first.
func (t *Trader) TradesToday(ctx context.Context, limit int) ([]model.Trade, error) {
	if err := t.checkReady(); err != nil {
		return nil, err
	}
	trades, err := t.store.Trades(ctx, store.TradeQuery{Since: t.account.LastReset, Limit: limit})
	if err != nil {
		return nil, errors.Wrap(err, "trades today")
	}
	return trades, nil
}

// Liquidate closes every open position with a known price. A failure on one
// position does not stop the others; all failures are returned joined.
func (t *Trader) Liquidate(ctx context.Context, prices map[string]decimal.Decimal, reason enum.ExitReason) ([]model.Trade, error) {
	var (
		trades []model.Trade
		errs   []error
	)
	for _, p := range t.positions.AllOpen() {
		price, ok := prices[p.Instrument]
		if !ok {
			errs = append(errs, errors.Wrapf(exception.ErrInvalidPrice, "liquidate %s: no price", p.Instrument))
			continue
		}
		trade, err := t.Close(ctx, p.Instrument, price, reason)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		trades = append(trades, trade)
	}
	return trades, errors.Join(errs...)
}

// RecordEquity persists the current equity curve point.
func (t *Trader) RecordEquity(ctx context.Context, prices map[string]decimal.Decimal) (model.EquitySnapshot, error) {
	snap := model.EquitySnapshot{
		Time:          model.UTC(t.now()),
		Cash:          t.account.Cash,
		Equity:        t.PortfolioValue(prices),
		UnrealizedPnL: t.UnrealizedPnL(prices),
		OpenPositions: t.positions.Count(),
	}
	if err := t.store.InsertEquitySnapshot(ctx, snap); err != nil {
		return snap, errors.Wrap(err, "record equity")
	}
	return snap, nil
}

func (t *Trader) checkReady() error {
	if !t.ready {
		return errors.Wrap(exception.ErrNotInitialised, "paper trader")
	}
	return nil
}

func putAccount(a model.AccountState) state.TxFunc {
	return func(ctx context.Context, tx store.Store) error {
		return tx.PutAccount(ctx, a)
	}
}
