package main

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"

	"papertrade/internal/errors"
	"papertrade/internal/model/enum"
)

func newLiquidateCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "liquidate",
		Short: "Close every open position at the current market price",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return liquidate(ctx, a, enum.ExitManual)
		},
	}
}

// liquidate prices every open position from the feed and closes them all.
// Positions whose price cannot be fetched stay open.
func liquidate(ctx context.Context, a *app, reason enum.ExitReason) error {
	positions := a.trader.Positions()
	if len(positions) == 0 {
		logs.Info("papertrade liquidate, nothing open")
		return nil
	}

	prices := make(map[string]decimal.Decimal, len(positions))
	var errs []error
	for _, p := range positions {
		price, err := a.feed.CurrentPrice(ctx, p.Instrument)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "price %s", p.Instrument))
			continue
		}
		prices[p.Instrument] = price
	}

	trades, err := a.trader.Liquidate(ctx, prices, reason)
	if err != nil {
		errs = append(errs, err)
	}
	logs.Infof("papertrade liquidated, closed: %d, still open: %d, cash: %s", len(trades), len(a.trader.Positions()), a.trader.Account().Cash)
	return errors.Join(errs...)
}
