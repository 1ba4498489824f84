package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"papertrade/internal/model"
	"papertrade/internal/state"
	"papertrade/internal/store"
)

type statusFlags struct {
	trades int
	verify string
}

func newStatusCmd(root *rootFlags) *cobra.Command {
	flags := &statusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the account, open positions and recent trades",
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
			return status(ctx, cmd.OutOrStdout(), a, *flags)
		},
	}
	cmd.Flags().IntVar(&flags.trades, "trades", 10, "Number of recent trades to print")
	cmd.Flags().StringVar(&flags.verify, "verify", "", "Compare open positions with this snapshot file")
	return cmd
}

type statusView struct {
	Account   accountView    `json:"account"`
	Risk      riskView       `json:"risk"`
	Positions state.Snapshot `json:"positions"`
	Trades    []tradeView    `json:"trades"`
}

type accountView struct {
	Cash            string `json:"cash"`
	StartingBalance string `json:"startingBalance"`
	LastReset       string `json:"lastReset"`
}

// riskView values open positions at entry; status does not fetch prices.
type riskView struct {
	DailyPnL         string `json:"dailyPnl"`
	DailyPnLFraction string `json:"dailyPnlFraction"`
	Headroom         string `json:"headroom"`
}

type tradeView struct {
	PositionID string `json:"positionId"`
	Instrument string `json:"instrument"`
	Direction  string `json:"direction"`
	EntryPrice string `json:"entryPrice"`
	ExitPrice  string `json:"exitPrice"`
	NetPnL     string `json:"netPnl"`
	ExitTime   string `json:"exitTime"`
	ExitReason string `json:"exitReason"`
	Held       string `json:"held"`
	Win        bool   `json:"win"`
}

func status(ctx context.Context, w io.Writer, a *app, flags statusFlags) error {
	account := a.trader.Account()
	view := statusView{
		Account: accountView{
			Cash:            account.Cash.String(),
			StartingBalance: account.StartingBalance.String(),
			LastReset:       model.FormatTime(account.LastReset),
		},
		Positions: a.positions.Snapshot(),
	}
	rm := a.trader.Risk().Metrics(a.trader.PortfolioValue(nil), account.StartingBalance)
	view.Risk = riskView{
		DailyPnL:         rm.DailyPnL.String(),
		DailyPnLFraction: rm.DailyPnLFraction.StringFixed(4),
		Headroom:         rm.Headroom.StringFixed(4),
	}

	if flags.trades > 0 {
		trades, err := a.store.Trades(ctx, store.TradeQuery{Limit: flags.trades})
		if err != nil {
			return err
		}
		for _, t := range trades {
			view.Trades = append(view.Trades, tradeView{
				PositionID: t.PositionID,
				Instrument: t.Instrument,
				Direction:  t.Direction.String(),
				EntryPrice: t.EntryPrice.String(),
				ExitPrice:  t.ExitPrice.String(),
				NetPnL:     t.NetPnL.String(),
				ExitTime:   model.FormatTime(t.ExitTime),
				ExitReason: t.ExitReason,
				Held:       t.Duration().String(),
				Win:        t.IsWin(),
			})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(view); err != nil {
		return err
	}

	if flags.verify != "" {
		expected, err := state.ReadSnapshot(flags.verify)
		if err != nil {
			return err
		}
		if err := state.CompareSnapshots(expected, view.Positions); err != nil {
			return err
		}
		fmt.Fprintf(w, "positions match %s\n", flags.verify)
	}
	return nil
}
