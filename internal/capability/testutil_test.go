package capability_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/stockai/internal/engine"
	"github.com/gosuda/stockai/internal/market"
)

var errProviderDown = errors.New("provider down")

type fakeData struct {
	getBasicInfoFunc func(ctx context.Context, ticker string) (*market.BasicInfo, error)
	getHistoryFunc   func(ctx context.Context, ticker, interval, rng string) ([]market.Candle, error)
}

func (f *fakeData) GetBasicInfo(ctx context.Context, ticker string) (*market.BasicInfo, error) {
	if f.getBasicInfoFunc != nil {
		return f.getBasicInfoFunc(ctx, ticker)
	}
	return nil, errProviderDown
}

func (f *fakeData) GetHistory(ctx context.Context, ticker, interval, rng string) ([]market.Candle, error) {
	if f.getHistoryFunc != nil {
		return f.getHistoryFunc(ctx, ticker, interval, rng)
	}
	return nil, errProviderDown
}

type fakeNews struct {
	getRecentNewsFunc func(ctx context.Context, topic string, limit int) ([]market.NewsItem, error)
}

func (f *fakeNews) GetRecentNews(ctx context.Context, topic string, limit int) ([]market.NewsItem, error) {
	if f.getRecentNewsFunc != nil {
		return f.getRecentNewsFunc(ctx, topic, limit)
	}
	return nil, errProviderDown
}

type fakeConcepts struct {
	listConceptsFunc     func(ctx context.Context) ([]market.Concept, error)
	getConceptStocksFunc func(ctx context.Context, concept string) ([]market.ConceptStock, error)
}

func (f *fakeConcepts) ListConcepts(ctx context.Context) ([]market.Concept, error) {
	if f.listConceptsFunc != nil {
		return f.listConceptsFunc(ctx)
	}
	return nil, errProviderDown
}

func (f *fakeConcepts) GetConceptStocks(ctx context.Context, concept string) ([]market.ConceptStock, error) {
	if f.getConceptStocksFunc != nil {
		return f.getConceptStocksFunc(ctx, concept)
	}
	return nil, errProviderDown
}

// candlesFromCloses builds a daily candle series from closing prices, one
// bar per day ending today.
func candlesFromCloses(closes ...float64) []market.Candle {
	candles := make([]market.Candle, 0, len(closes))
	start := time.Now().AddDate(0, 0, -len(closes))
	for i, c := range closes {
		candles = append(candles, market.Candle{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1000,
		})
	}
	return candles
}

func newState(input string) *engine.AgentState {
	return engine.NewAgentState(uuid.New(), input, nil)
}

func stocksNamed(tickers ...string) []market.ConceptStock {
	stocks := make([]market.ConceptStock, 0, len(tickers))
	for _, t := range tickers {
		stocks = append(stocks, market.ConceptStock{Ticker: t, Name: "stock " + t})
	}
	return stocks
}
