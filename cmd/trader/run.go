package main

import (
	"context"
	"net/http"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"papertrade/internal/core"
	"papertrade/internal/errors"
	"papertrade/internal/model/enum"
	"papertrade/internal/obs"
	"papertrade/internal/ops"
	"papertrade/internal/state"
)

type runFlags struct {
	once            bool
	snapshotPath    string
	liquidateOnExit bool
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading loop until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, *flags)
		},
	}
	cmd.Flags().BoolVar(&flags.once, "once", false, "Run a single tick and exit")
	cmd.Flags().StringVar(&flags.snapshotPath, "snapshot", "", "Write a position snapshot here on exit")
	cmd.Flags().BoolVar(&flags.liquidateOnExit, "liquidate-on-exit", false, "Close every open position before exiting")
	return cmd
}

func run(parent context.Context, cfg ops.Config, flags runFlags) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	go func() {
		select {
		case <-sys.Shutdown():
			logs.Info("papertrade shutdown requested")
			cancel()
		case <-ctx.Done():
		}
	}()

	if stop := startProfiler(cfg.Profiling); stop != nil {
		defer stop()
	}

	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	metrics := obs.NewMetrics()
	if stop := startMetricsServer(cfg.Metrics.Addr, metrics); stop != nil {
		defer stop()
	}

	loop, err := core.NewLoop(core.Config{
		Instruments: cfg.Instruments,
		Timeframe:   cfg.Timeframe,
		CandleLimit: cfg.CandleLimit,
	}, a.feed, a.trader, a.strategies, core.WithMetrics(metrics))
	if err != nil {
		return err
	}

	logs.Infof("papertrade started, instruments: %v, strategies: %d, interval: %s", cfg.Instruments, len(a.strategies), cfg.Interval)
	if flags.once {
		loop.Tick(ctx)
	} else if err := loop.Run(ctx, cfg.Interval.Std()); err != nil {
		return err
	}

	// the loop context is gone by now
	exitCtx, exitCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer exitCancel()

	if flags.liquidateOnExit {
		if err := liquidate(exitCtx, a, enum.ExitLiquidation); err != nil {
			logs.Errorf("papertrade liquidate on exit failed, err: %+v", err)
		}
	}
	if flags.snapshotPath != "" {
		if err := state.WriteSnapshot(flags.snapshotPath, a.positions.Snapshot()); err != nil {
			return errors.Wrap(err, "write snapshot")
		}
		logs.Infof("papertrade snapshot written, path: %s", flags.snapshotPath)
	}
	return nil
}

func startMetricsServer(addr string, metrics *obs.Metrics) func() {
	if addr == "" {
		return nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		obs.NewCollector(metrics),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("papertrade metrics server failed, addr: %s, err: %+v", addr, err)
		}
	}()
	logs.Infof("papertrade metrics listening, addr: %s", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func startProfiler(cfg ops.ProfilingConfig) func() {
	if cfg.ServerAddress == "" {
		return nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          emptyLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		logs.Errorf("papertrade pyroscope start failed, err: %+v", err)
		return nil
	}
	return func() {
		_ = profiler.Stop()
	}
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
