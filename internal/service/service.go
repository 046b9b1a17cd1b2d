// Package service runs the backtest engine over freshly collected data for every configured pair.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"COTSentinel/internal/backtest"
	"COTSentinel/internal/collector"
	"COTSentinel/internal/metrics"
	"COTSentinel/internal/model"
	"COTSentinel/internal/pairs"
	"COTSentinel/internal/strategy"
)

// ErrUnknownPair is returned for pairs outside the configured table.
var ErrUnknownPair = errors.New("unknown pair")

// Snapshot is the outcome of one full refresh.
type Snapshot struct {
	RunAt   time.Time
	Results []*model.RunResult // in table order, successful pairs only
	// Failures holds, per pair, why no result could be built.
	Failures map[string]error
	Dataset  *collector.Dataset
}

// Result returns the run for pair, if present.
func (s *Snapshot) Result(pair string) (*model.RunResult, bool) {
	for _, r := range s.Results {
		if r.Pair == pair {
			return r, true
		}
	}
	return nil, false
}

// Service runs the engine over the configured pairs and keeps the latest snapshot.
type Service struct {
	Collector *collector.Collector
	Table     *pairs.Table
	Filter    backtest.Filter
	Workers   int

	mu     sync.RWMutex
	latest *Snapshot
}

// New creates a Service.
func New(col *collector.Collector, table *pairs.Table, f backtest.Filter, workers int) *Service {
	return &Service{Collector: col, Table: table, Filter: f, Workers: workers}
}

// Latest returns the last snapshot, or nil before the first refresh.
func (s *Service) Latest() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Refresh collects fresh data for every pair, runs the backtest and stores the snapshot.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	defer func() { metrics.RunDuration.Observe(time.Since(start).Seconds()) }()

	ps := s.Table.Pairs()
	ds, err := s.Collector.Collect(ctx, s.Table, ps)
	if err != nil {
		for _, p := range ps {
			metrics.RunsTotal.WithLabelValues(p.Name, "error").Inc()
		}
		return nil, fmt.Errorf("collect: %w", err)
	}

	inputs := make([]backtest.Input, len(ps))
	for i, p := range ps {
		inputs[i] = backtest.Input{Pair: p, Prices: ds.Prices[p.Name]}
	}
	outs := backtest.RunAll(ctx, ds.Feed, inputs, s.Filter, s.Workers)

	snap := &Snapshot{RunAt: start, Failures: make(map[string]error), Dataset: ds}
	for _, o := range outs {
		if o.Err != nil {
			snap.Failures[o.Pair.Name] = o.Err
			metrics.RunsTotal.WithLabelValues(o.Pair.Name, "error").Inc()
			log.Warn().Err(o.Err).Str("pair", o.Pair.Name).Msg("pair skipped")
			continue
		}
		if perr, ok := ds.PriceErrors[o.Pair.Name]; ok {
			// signals are still useful without prices
			snap.Failures[o.Pair.Name] = perr
		}
		snap.Results = append(snap.Results, o.Result)
		s.observe(o.Result)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()

	log.Info().
		Int("pairs", len(ps)).
		Int("ok", len(snap.Results)).
		Int("failed", len(snap.Failures)).
		Dur("took", time.Since(start)).
		Msg("refresh complete")
	return snap, nil
}

func (s *Service) observe(res *model.RunResult) {
	metrics.RunsTotal.WithLabelValues(res.Pair, "ok").Inc()
	for _, sig := range res.Signals {
		metrics.SignalsTotal.WithLabelValues(res.Pair, string(sig.Type)).Inc()
	}
	if n := len(res.Signals); n > 0 {
		last := res.Signals[n-1]
		metrics.LatestConviction.DeletePartialMatch(map[string]string{"pair": res.Pair})
		metrics.LatestConviction.WithLabelValues(res.Pair, string(last.Direction)).Set(float64(last.Conviction))
	}
}

// ensure returns the latest snapshot, refreshing first when there is none.
func (s *Service) ensure(ctx context.Context) (*Snapshot, error) {
	if snap := s.Latest(); snap != nil {
		return snap, nil
	}
	return s.Refresh(ctx)
}

// Pair resolves name against the table.
func (s *Service) Pair(name string) (pairs.Pair, error) {
	p, ok := s.Table.Pair(name)
	if !ok {
		return pairs.Pair{}, fmt.Errorf("%w: %q", ErrUnknownPair, name)
	}
	return p, nil
}

// Backtest returns the run of one pair summarized with f.
func (s *Service) Backtest(ctx context.Context, name string, f backtest.Filter) (*model.RunResult, error) {
	p, err := s.Pair(name)
	if err != nil {
		return nil, err
	}
	snap, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	res, ok := snap.Result(p.Name)
	if !ok {
		if ferr, ok := snap.Failures[p.Name]; ok {
			return nil, ferr
		}
		return nil, &strategy.DataAvailabilityError{Pair: p.Name, Reason: "no result in latest run"}
	}
	out := *res
	out.Summary = backtest.Summarize(res.Matched, f)
	return &out, nil
}

// Explain returns the score breakdown for the latest week of one pair.
func (s *Service) Explain(ctx context.Context, name string) (strategy.Verdict, model.InstrumentSnapshot, model.InstrumentSnapshot, error) {
	var zero model.InstrumentSnapshot
	p, err := s.Pair(name)
	if err != nil {
		return strategy.Verdict{}, zero, zero, err
	}
	snap, err := s.ensure(ctx)
	if err != nil {
		return strategy.Verdict{}, zero, zero, err
	}
	return strategy.ExplainFromFeed(p, snap.Dataset.Feed)
}
