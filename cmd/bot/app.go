package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"COTSentinel/internal/backtest"
	"COTSentinel/internal/collector"
	"COTSentinel/internal/config"
	"COTSentinel/internal/logging"
	"COTSentinel/internal/pairs"
	"COTSentinel/internal/recorder"
	"COTSentinel/internal/service"
)

// options are the persistent flags shared by every command.
type options struct {
	configPath       string
	offline          bool
	pairs            []string
	minConviction    int
	includeConflicts bool
}

// app holds the wired components for one command invocation.
type app struct {
	cfg      *config.Config
	table    *pairs.Table
	recorder recorder.Recorder
	service  *service.Service
	filter   backtest.Filter
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		log.Warn().Err(err).Msg("close recorder")
	}
}

// bootstrap loads configuration, applies flag overrides and wires the engine.
func bootstrap(opts *options) (*app, error) {
	cfgPath := opts.configPath
	if v := os.Getenv("CONFIG_PATH"); v != "" && cfgPath == defaultConfigPath {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if len(opts.pairs) > 0 {
		cfg.Pairs = opts.pairs
	}
	if opts.minConviction >= 0 {
		cfg.Backtest.MinConviction = opts.minConviction
	}
	if opts.includeConflicts {
		cfg.Backtest.ExcludeConflicts = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	table, err := cfg.PairTable()
	if err != nil {
		return nil, err
	}

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		if cfg.Database.SQLitePath != ":memory:" {
			_ = os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755)
		}
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			if opts.offline {
				return nil, fmt.Errorf("offline mode needs the sqlite cache: %w", err)
			}
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			rec = sr
		}
	}

	positions := collector.NewCFTCFetcher(cfg.CFTC.URLTemplates, cfg.CFTC.HistoryYears, cfg.CFTC.MaxWeeks, cfg.CFTCTimeout(), cfg.Proxy)
	var prices collector.PriceFetcher
	if cfg.Prices.BaseURL != "" {
		prices = collector.NewRESTFetcher(cfg.Prices.BaseURL, cfg.Prices.APIKey, cfg.Proxy)
	} else {
		prices = collector.NewYahooFetcher(cfg.Proxy)
	}
	log.Info().Str("positions", positions.Name()).Str("prices", prices.Name()).Bool("offline", opts.offline).Msg("data sources")

	col := collector.NewCollector(positions, prices, rec, collector.GuardSettings{
		RequestsPerSecond: cfg.FeedGuard.RequestsPerSecond,
		Burst:             cfg.FeedGuard.Burst,
		BreakerFailures:   cfg.FeedGuard.BreakerFailures,
		BreakerTimeout:    cfg.BreakerTimeout(),
	})
	col.HistoryDays = cfg.Prices.HistoryDays
	col.Offline = opts.offline

	filter := backtest.Filter{
		MinConviction:    cfg.Backtest.MinConviction,
		ExcludeConflicts: cfg.Backtest.ExcludeConflicts,
	}
	return &app{
		cfg:      cfg,
		table:    table,
		recorder: rec,
		service:  service.New(col, table, filter, cfg.Backtest.Workers),
		filter:   filter,
	}, nil
}
