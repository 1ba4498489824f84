package main

import (
	"context"

	"github.com/yanun0323/logs"

	"papertrade/internal/errors"
	"papertrade/internal/marketdata"
	"papertrade/internal/ops"
	"papertrade/internal/paper"
	"papertrade/internal/risk"
	"papertrade/internal/state"
	"papertrade/internal/store"
	"papertrade/internal/strategy"
	"papertrade/pkg/conn"
)

// app holds everything a command needs. Close releases the database.
type app struct {
	cfg        ops.Config
	client     *conn.Client
	store      store.Store
	positions  *state.PositionManager
	feed       marketdata.Feed
	strategies []strategy.Strategy
	trader     *paper.Trader
}

func build(ctx context.Context, cfg ops.Config) (*app, error) {
	a := &app{cfg: cfg}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	var err error
	a.strategies, err = newStrategies(cfg.Strategies)
	if err != nil {
		a.Close()
		return nil, err
	}

	rm, err := risk.NewManager(cfg.Risk, strategy.Hints(a.strategies)...)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.positions = state.NewPositionManager(a.store)
	a.trader, err = paper.NewTrader(a.store, a.positions, rm, cfg.Fill, cfg.InitialBalance)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.trader.Init(ctx); err != nil {
		a.Close()
		return nil, errors.Wrap(err, "init trader")
	}

	a.feed = newFeed(cfg.Feed)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	db := a.cfg.Database
	if db.Driver == "" {
		logs.Info("papertrade store: memory, state is lost on exit")
		a.store = store.NewMemory()
		return nil
	}

	client, err := conn.New(conn.Option{
		Driver:     db.Driver,
		Host:       db.Host,
		Port:       db.Port,
		User:       db.User,
		Password:   db.Password,
		Database:   db.Name,
		SSLMode:    db.SSLMode,
		Params:     db.Params,
		ConnString: db.DSN,
		Path:       db.Path,
	})
	if err != nil {
		return errors.Wrap(err, "open database")
	}

	g := store.NewGorm(client.DB())
	if err := g.Migrate(ctx); err != nil {
		_ = client.Close()
		return err
	}

	logs.Infof("papertrade store: %s", client.Driver())
	a.client = client
	a.store = g
	return nil
}

func newStrategies(configs []ops.StrategyConfig) ([]strategy.Strategy, error) {
	var out []strategy.Strategy
	for _, c := range configs {
		if !c.IsEnabled() {
			continue
		}
		s, err := strategy.New(c.Name, c.Params)
		if err != nil {
			return nil, errors.Wrapf(err, "strategy %s", c.Name)
		}
		out = append(out, s)
	}
	return out, nil
}

func newFeed(cfg ops.FeedConfig) marketdata.Feed {
	if cfg.Kind == ops.FeedStatic {
		logs.Info("papertrade feed: static, no candles until set")
		return marketdata.NewStatic()
	}
	return marketdata.NewBinance(marketdata.BinanceOption{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout.Std(),
		RetryCount: cfg.RetryCount,
	})
}

func (a *app) Close() {
	if a.client == nil {
		return
	}
	if err := a.client.Close(); err != nil {
		logs.Errorf("papertrade close database failed, err: %+v", err)
	}
}
