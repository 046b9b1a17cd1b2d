package collector

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"COTSentinel/internal/metrics"
	"COTSentinel/internal/model"
	"COTSentinel/internal/pairs"
	"COTSentinel/internal/recorder"
)

// DefaultHistoryDays is how many daily prices are requested per pair.
const DefaultHistoryDays = 800

// Dataset is everything the engine needs for a set of pairs.
type Dataset struct {
	Feed   model.PositionFeed
	Prices map[string][]model.PricePoint // by pair name, ascending, already inverted
	// PriceErrors holds per-pair price failures; those pairs have no entry in Prices.
	PriceErrors map[string]error
	FetchedAt   time.Time
}

// Collector orchestrates the positioning and price fetches and keeps the cache current.
type Collector struct {
	Positions   PositionFetcher
	Prices      PriceFetcher
	Cache       recorder.Recorder
	HistoryDays int
	// Offline serves everything from Cache without touching the network.
	Offline bool

	positionGuard *Guard
	priceGuard    *Guard
}

// NewCollector creates a new Collector. A nil cache disables write-through.
func NewCollector(positions PositionFetcher, prices PriceFetcher, cache recorder.Recorder, gs GuardSettings) *Collector {
	if cache == nil {
		cache = recorder.NewNoopRecorder()
	}
	c := &Collector{
		Positions:   positions,
		Prices:      prices,
		Cache:       cache,
		HistoryDays: DefaultHistoryDays,
	}
	if positions != nil {
		c.positionGuard = NewGuard(positions.Name(), gs)
	}
	if prices != nil {
		c.priceGuard = NewGuard(prices.Name(), gs)
	}
	return c
}

// Instruments returns the distinct instruments behind ps, ordered by code.
func Instruments(table *pairs.Table, ps []pairs.Pair) []pairs.Instrument {
	seen := map[string]bool{}
	var out []pairs.Instrument
	for _, p := range ps {
		for _, code := range []string{p.Base, p.Quote} {
			if seen[code] {
				continue
			}
			seen[code] = true
			if in, ok := table.Instrument(code); ok {
				out = append(out, in)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Collect fetches positioning and prices for ps concurrently. A positioning failure
// fails the whole collection; price failures are reported per pair.
func (c *Collector) Collect(ctx context.Context, table *pairs.Table, ps []pairs.Pair) (*Dataset, error) {
	ds := &Dataset{
		Prices:      make(map[string][]model.PricePoint, len(ps)),
		PriceErrors: make(map[string]error),
		FetchedAt:   time.Now(),
	}
	instruments := Instruments(table, ps)

	var (
		wg     sync.WaitGroup
		posErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		ds.Feed, posErr = c.positions(ctx, instruments)
	}()
	go func() {
		defer wg.Done()
		for _, p := range ps {
			pts, err := c.prices(ctx, p)
			if err != nil {
				ds.PriceErrors[p.Name] = err
				continue
			}
			ds.Prices[p.Name] = pts
		}
	}()
	wg.Wait()

	if posErr != nil {
		return nil, posErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ds, nil
}

func (c *Collector) positions(ctx context.Context, instruments []pairs.Instrument) (model.PositionFeed, error) {
	codes := make([]string, len(instruments))
	for i, in := range instruments {
		codes[i] = in.Code
	}
	if c.Offline || c.Positions == nil {
		return c.Cache.LoadPositions(codes)
	}

	feed, err := call(ctx, c.positionGuard, func(ctx context.Context) (model.PositionFeed, error) {
		return c.Positions.FetchPositions(ctx, instruments)
	})
	if err != nil {
		metrics.FetchErrorsTotal.WithLabelValues(c.Positions.Name()).Inc()
		fetchErr := &FetchError{Feed: c.Positions.Name(), Err: err}
		if errors.Is(err, context.Canceled) {
			return nil, fetchErr
		}
		cached, cacheErr := c.Cache.LoadPositions(codes)
		if cacheErr != nil || len(cached) == 0 {
			return nil, fetchErr
		}
		log.Warn().Err(err).Str("feed", c.Positions.Name()).Str("breaker", breakerState(c.positionGuard)).Int("instruments", len(cached)).Msg("positioning fetch failed, using cache")
		return cached, nil
	}

	for code, rec := range feed {
		if err := c.Cache.SavePositions(code, rec); err != nil {
			log.Warn().Err(err).Str("instrument", code).Msg("cache positions failed")
		}
	}
	return feed, nil
}

func (c *Collector) prices(ctx context.Context, p pairs.Pair) ([]model.PricePoint, error) {
	if c.Offline || c.Prices == nil {
		pts, err := c.Cache.LoadPrices(p.Name)
		if err != nil {
			return nil, err
		}
		return pts, nil
	}

	pts, err := call(ctx, c.priceGuard, func(ctx context.Context) ([]model.PricePoint, error) {
		return c.Prices.FetchDailyPrices(ctx, p.PriceSymbol, c.HistoryDays)
	})
	if err != nil {
		metrics.FetchErrorsTotal.WithLabelValues(c.Prices.Name()).Inc()
		fetchErr := &FetchError{Feed: c.Prices.Name(), Pair: p.Name, Err: err}
		cached, cacheErr := c.Cache.LoadPrices(p.Name)
		if errors.Is(err, context.Canceled) || cacheErr != nil || len(cached) == 0 {
			log.Warn().Err(err).Str("feed", c.Prices.Name()).Str("breaker", breakerState(c.priceGuard)).Str("pair", p.Name).Msg("price fetch failed")
			return nil, fetchErr
		}
		log.Warn().Err(err).Str("feed", c.Prices.Name()).Str("breaker", breakerState(c.priceGuard)).Str("pair", p.Name).Msg("price fetch failed, using cache")
		return cached, nil
	}

	if p.Invert {
		pts = invert(pts)
	}
	if err := c.Cache.SavePrices(p.Name, pts); err != nil {
		log.Warn().Err(err).Str("pair", p.Name).Msg("cache prices failed")
	}
	return pts, nil
}

// invert converts base-per-quote quotes to quote-per-base.
func invert(pts []model.PricePoint) []model.PricePoint {
	out := make([]model.PricePoint, 0, len(pts))
	for _, p := range pts {
		if p.Price == 0 {
			continue
		}
		out = append(out, model.PricePoint{Date: p.Date, Price: 1 / p.Price})
	}
	return out
}
