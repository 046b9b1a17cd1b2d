package recorder

import "COTSentinel/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) SavePositions(_ string, _ model.PositionRecord) error { return nil }
func (n *NoopRecorder) LoadPositions(_ []string) (model.PositionFeed, error) {
	return model.PositionFeed{}, nil
}
func (n *NoopRecorder) SavePrices(_ string, _ []model.PricePoint) error { return nil }
func (n *NoopRecorder) LoadPrices(_ string) ([]model.PricePoint, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                    { return nil }
