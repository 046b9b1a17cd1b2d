package backtest

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"COTSentinel/internal/model"
	"COTSentinel/internal/pairs"
	"COTSentinel/internal/strategy"
)

// Run builds, matches and summarizes one pair. Signals are always returned when they
// can be built, even if prices is empty.
func Run(p pairs.Pair, feed model.PositionFeed, prices []model.PricePoint, f Filter) (*model.RunResult, error) {
	runID := uuid.NewString()
	logger := log.With().Str("pair", p.Name).Str("run_id", runID).Logger()

	signals, err := strategy.BuildFromFeed(p, feed)
	if err != nil {
		return nil, fmt.Errorf("build signals: %w", err)
	}

	matched, dropped := Match(signals, prices)
	if dropped > 0 {
		logger.Debug().Int("dropped", dropped).Int("prices", len(prices)).Msg("signals without price coverage")
	}

	res := &model.RunResult{
		RunID:   runID,
		Pair:    p.Name,
		Signals: signals,
		Matched: matched,
		Dropped: dropped,
		Summary: Summarize(matched, f),
	}
	logger.Debug().
		Int("signals", len(signals)).
		Int("matched", len(matched)).
		Int("trades", res.Summary.Total).
		Float64("win_rate", res.Summary.WinRate).
		Msg("backtest complete")
	return res, nil
}

// Input is one pair to evaluate in RunAll.
type Input struct {
	Pair   pairs.Pair
	Prices []model.PricePoint
}

// Output pairs a RunAll input with its result or error.
type Output struct {
	Pair   pairs.Pair
	Result *model.RunResult
	Err    error
}

// RunAll evaluates inputs concurrently against a shared, read-only feed. Outputs keep
// the input order. If workers <= 0 it uses runtime.NumCPU().
func RunAll(ctx context.Context, feed model.PositionFeed, inputs []Input, f Filter, workers int) []Output {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}

	out := make([]Output, len(inputs))
	workCh := make(chan int, len(inputs))
	for i := range inputs {
		workCh <- i
	}
	close(workCh)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				in := inputs[i]
				if err := ctx.Err(); err != nil {
					out[i] = Output{Pair: in.Pair, Err: err}
					continue
				}
				res, err := Run(in.Pair, feed, in.Prices, f)
				out[i] = Output{Pair: in.Pair, Result: res, Err: err}
			}
		}()
	}
	wg.Wait()
	return out
}
