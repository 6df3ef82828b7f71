package market

import (
	"context"
	"time"
)

// BasicInfo is the fundamental snapshot of one listed security.
type BasicInfo struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	Industry  string  `json:"industry"`
	MarketCap float64 `json:"market_cap"`
	PE        float64 `json:"pe"`
	PB        float64 `json:"pb"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
}

// Candle is one bar of OHLCV history.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// NewsItem is one news article returned by the news provider.
type NewsItem struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
}

// Concept is a sector/concept group identifier.
type Concept struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ConceptStock is one constituent of a concept group.
type ConceptStock struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	ChangePct float64 `json:"change_pct"`
	Turnover  float64 `json:"turnover"`
}

// DataProvider exposes per-security market data.
type DataProvider interface {
	GetBasicInfo(ctx context.Context, ticker string) (*BasicInfo, error)
	// GetHistory returns OHLCV bars for the given interval ("1m", "1d", "1wk")
	// and range ("1d", "1mo", "1y"), oldest first.
	GetHistory(ctx context.Context, ticker, interval, rng string) ([]Candle, error)
}

// NewsProvider exposes recent market news for a topic.
type NewsProvider interface {
	GetRecentNews(ctx context.Context, topic string, limit int) ([]NewsItem, error)
}

// ConceptProvider exposes sector/concept groups and their constituents.
type ConceptProvider interface {
	ListConcepts(ctx context.Context) ([]Concept, error)
	GetConceptStocks(ctx context.Context, concept string) ([]ConceptStock, error)
}
