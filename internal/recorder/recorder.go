package recorder

import "COTSentinel/internal/model"

// Recorder caches raw feed data: weekly positions and daily prices.
// Position and price writes are upserts keyed by instrument or pair and date.
type Recorder interface {
	SavePositions(code string, rec model.PositionRecord) error
	// LoadPositions returns the cached records for codes, weeks newest-first.
	// Codes with no cached rows are absent from the result.
	LoadPositions(codes []string) (model.PositionFeed, error)
	SavePrices(pair string, points []model.PricePoint) error
	// LoadPrices returns the cached prices for pair, ascending by date.
	LoadPrices(pair string) ([]model.PricePoint, error)
	Close() error
}
