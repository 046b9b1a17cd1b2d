package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"COTSentinel/internal/api"
	"COTSentinel/internal/notifier"
	"COTSentinel/internal/report"
	"COTSentinel/internal/scheduler"
)

const defaultConfigPath = "configs/config.yaml"

func newRootCmd(ctx context.Context) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "cotsentinel",
		Short:         "COT positioning signal engine for FX pairs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetContext(ctx)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to the YAML config (CONFIG_PATH overrides the default)")
	pf.BoolVar(&opts.offline, "offline", false, "use only data cached in sqlite")
	pf.StringSliceVar(&opts.pairs, "pairs", nil, "restrict to these pairs (e.g. EURUSD,USDJPY)")
	pf.IntVar(&opts.minConviction, "min-conviction", -1, "minimum conviction for backtest statistics (default from config)")
	pf.BoolVar(&opts.includeConflicts, "include-conflicts", false, "keep CONFLICT signals in backtest statistics")

	root.AddCommand(
		newServeCmd(opts),
		newBacktestCmd(opts),
		newSignalsCmd(opts),
		newPairsCmd(opts),
	)
	return root
}

func newServeCmd(opts *options) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the weekly scheduler, Telegram bot and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cfg.ValidateTelegram(); err != nil {
				return fmt.Errorf("config validation: %w", err)
			}
			if os.Getenv("RUN_ON_START") == "true" {
				runOnStart = true
			}
			return serve(cmd.Context(), a, runOnStart)
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-now", false, "run the weekly task once at startup (RUN_ON_START=true)")
	return cmd
}

func serve(ctx context.Context, a *app, runOnStart bool) error {
	tn := notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy)

	sched := scheduler.NewScheduler(ctx, a.service, tn)
	if err := sched.RegisterAll(a.cfg.Schedule.WeeklyCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	go tn.StartPolling(ctx, sched.HandleCommand)

	srv := api.NewServer(a.cfg.HTTP.Addr, a.service, a.table, a.filter)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info().
		Str("cron", a.cfg.Schedule.WeeklyCron).
		Str("addr", a.cfg.HTTP.Addr).
		Int("pairs", len(a.table.Pairs())).
		Msg("cotsentinel started")

	if runOnStart {
		log.Info().Msg("RUN_ON_START: running weekly task")
		go sched.RunWeeklyNow()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case runErr = <-errCh:
		log.Error().Err(runErr).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	return runErr
}

func newBacktestCmd(opts *options) *cobra.Command {
	var showTrades bool
	cmd := &cobra.Command{
		Use:   "backtest [PAIR...]",
		Short: "Build signals and backtest them against daily prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.pairs = args
			}
			a, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.service.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			out := report.NewConsoleWriter(cmd.OutOrStdout())
			out.Runs(snap.Results)
			for _, res := range snap.Results {
				out.Summary(res)
				if showTrades {
					out.Trades(res.Matched)
				}
			}
			reportFailures(snap.Failures)
			if len(snap.Results) == 0 {
				return errors.New("no pair produced a backtest")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showTrades, "trades", false, "print every matched trade")
	return cmd
}

func newSignalsCmd(opts *options) *cobra.Command {
	var (
		last    int
		explain bool
	)
	cmd := &cobra.Command{
		Use:   "signals [PAIR...]",
		Short: "Print the most recent weekly signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.pairs = args
			}
			a, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.service.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			out := report.NewConsoleWriter(cmd.OutOrStdout())
			for _, res := range snap.Results {
				out.Signals(res.Pair, res.Signals, last)
				if !explain {
					continue
				}
				v, base, quote, err := a.service.Explain(cmd.Context(), res.Pair)
				if err != nil {
					log.Warn().Err(err).Str("pair", res.Pair).Msg("explain failed")
					continue
				}
				out.Explain(res.Pair, v, base, quote)
			}
			reportFailures(snap.Failures)
			return nil
		},
	}
	cmd.Flags().IntVarP(&last, "last", "n", 5, "number of recent signals per pair")
	cmd.Flags().BoolVar(&explain, "explain", false, "show the scoring breakdown of the latest week")
	return cmd
}

func newPairsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "pairs",
		Short: "List the configured pairs and their COT instruments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			report.NewConsoleWriter(cmd.OutOrStdout()).Pairs(a.table)
			return nil
		},
	}
}

func reportFailures(failures map[string]error) {
	for pair, err := range failures {
		log.Warn().Err(err).Str("pair", pair).Msg("pair skipped")
	}
	if len(failures) > 0 {
		names := make([]string, 0, len(failures))
		for pair := range failures {
			names = append(names, pair)
		}
		sort.Strings(names)
		fmt.Fprintf(os.Stderr, "%d pair(s) with errors: %s\n", len(failures), strings.Join(names, ", "))
	}
}
