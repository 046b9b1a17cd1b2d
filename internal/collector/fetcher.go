package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"COTSentinel/internal/model"
	"COTSentinel/internal/pairs"
)

// PositionFetcher loads weekly futures positioning for a set of instruments.
type PositionFetcher interface {
	FetchPositions(ctx context.Context, instruments []pairs.Instrument) (model.PositionFeed, error)
	Name() string
}

// PriceFetcher loads daily closing prices for one symbol, ascending by date.
type PriceFetcher interface {
	FetchDailyPrices(ctx context.Context, symbol string, days int) ([]model.PricePoint, error)
	Name() string
}

// FetchError wraps a failure of one upstream feed.
type FetchError struct {
	Feed string
	Pair string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Pair != "" {
		return fmt.Sprintf("%s feed (%s): %v", e.Feed, e.Pair, e.Err)
	}
	return fmt.Sprintf("%s feed: %v", e.Feed, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// newHTTPClient builds a client with an optional proxy.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// MockFetcher serves fixed data for development and testing.
type MockFetcher struct {
	Feed   model.PositionFeed
	Prices map[string][]model.PricePoint
	// Price seeds a generated daily series for symbols missing from Prices.
	Price float64
	Err   error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchPositions(_ context.Context, instruments []pairs.Instrument) (model.PositionFeed, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(model.PositionFeed, len(instruments))
	for _, in := range instruments {
		if rec, ok := m.Feed[in.Code]; ok {
			out[in.Code] = rec
		}
	}
	return out, nil
}

func (m *MockFetcher) FetchDailyPrices(_ context.Context, symbol string, days int) ([]model.PricePoint, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if pts, ok := m.Prices[symbol]; ok {
		return pts, nil
	}
	return generateMockPrices(m.Price, days), nil
}

func generateMockPrices(basePrice float64, count int) []model.PricePoint {
	today := model.Day(time.Now())
	pts := make([]model.PricePoint, count)
	for i := 0; i < count; i++ {
		pts[i] = model.PricePoint{
			Date:  today.AddDate(0, 0, -(count - i)),
			Price: basePrice * (1 + float64(i-count/2)*0.001),
		}
	}
	return pts
}
