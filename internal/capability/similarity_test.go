package capability_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/stockai/internal/capability"
	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/market"
)

type similarityResult struct {
	Pairs []struct {
		A          string  `json:"a"`
		B          string  `json:"b"`
		BasicScore float64 `json:"basic_score"`
		TechScore  float64 `json:"tech_score"`
		Combined   float64 `json:"combined"`
	} `json:"pairs"`
	Failures []string `json:"failures"`
}

func TestSimilarityNode_TwoStocks(t *testing.T) {
	t.Parallel()

	data := &fakeData{
		getBasicInfoFunc: func(_ context.Context, ticker string) (*market.BasicInfo, error) {
			return &market.BasicInfo{Ticker: ticker, Industry: "bank", MarketCap: 2000, PE: 6}, nil
		},
		getHistoryFunc: func(_ context.Context, ticker, _, _ string) ([]market.Candle, error) {
			return candlesFromCloses(10, 11, 10.5, 12, 11.8, 12.5), nil
		},
	}
	node := capability.NewSimilarityNode(data)

	st := newState("分析 000001 和 600036 的相似度")
	outcome := node.Execute(context.Background(), st, domain.Step{
		StepID:      "step-1",
		Description: "分析 000001 和 600036 的相似度",
		TargetNode:  node.Name(),
	})
	require.NoError(t, outcome.Err)

	var result similarityResult
	require.NoError(t, json.Unmarshal([]byte(outcome.Result), &result))
	require.Len(t, result.Pairs, 1)

	pair := result.Pairs[0]
	assert.Equal(t, "000001", pair.A)
	assert.Equal(t, "600036", pair.B)
	// Same industry, same fundamentals, identical price path.
	assert.InDelta(t, 1.0, pair.BasicScore, 1e-6)
	assert.InDelta(t, 1.0, pair.TechScore, 1e-6)
	assert.InDelta(t, 1.0, pair.Combined, 1e-6)
	assert.Empty(t, result.Failures)
}

func TestSimilarityNode_OneOfTwoFailsFailsStep(t *testing.T) {
	t.Parallel()

	data := &fakeData{
		getBasicInfoFunc: func(_ context.Context, ticker string) (*market.BasicInfo, error) {
			if ticker == "600036" {
				return nil, fmt.Errorf("quote service timeout")
			}
			return &market.BasicInfo{Ticker: ticker, Industry: "bank", MarketCap: 2000, PE: 6}, nil
		},
		getHistoryFunc: func(_ context.Context, ticker, _, _ string) ([]market.Candle, error) {
			return candlesFromCloses(10, 11, 12), nil
		},
	}
	node := capability.NewSimilarityNode(data)

	st := newState("分析 000001 和 600036 的相似度")
	outcome := node.Execute(context.Background(), st, domain.Step{
		Description: "分析 000001 和 600036 的相似度",
		TargetNode:  node.Name(),
	})

	// With only two tickers no pair can be scored, so the step fails and
	// names the broken symbol.
	require.Error(t, outcome.Err)
	assert.Contains(t, outcome.Err.Error(), "600036")
	assert.Contains(t, outcome.Err.Error(), "quote service timeout")
}

func TestSimilarityNode_PartialFailureWithThreeStocks(t *testing.T) {
	t.Parallel()

	data := &fakeData{
		getBasicInfoFunc: func(_ context.Context, ticker string) (*market.BasicInfo, error) {
			if ticker == "600519" {
				return nil, fmt.Errorf("not found")
			}
			return &market.BasicInfo{Ticker: ticker, Industry: "bank", MarketCap: 2000, PE: 6}, nil
		},
		getHistoryFunc: func(_ context.Context, ticker, _, _ string) ([]market.Candle, error) {
			return candlesFromCloses(10, 11, 10.5, 12), nil
		},
	}
	node := capability.NewSimilarityNode(data)

	st := newState("compare 000001 600036 600519")
	outcome := node.Execute(context.Background(), st, domain.Step{
		Description: "compare 000001 600036 600519",
		TargetNode:  node.Name(),
	})
	require.NoError(t, outcome.Err)

	var result similarityResult
	require.NoError(t, json.Unmarshal([]byte(outcome.Result), &result))

	// The surviving pair is scored; the broken symbol lands in failures.
	require.Len(t, result.Pairs, 1)
	assert.Equal(t, "000001", result.Pairs[0].A)
	assert.Equal(t, "600036", result.Pairs[0].B)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "600519")
}

func TestSimilarityNode_NeedsTwoTickers(t *testing.T) {
	t.Parallel()

	node := capability.NewSimilarityNode(&fakeData{})

	st := newState("how similar is 600519?")
	outcome := node.Execute(context.Background(), st, domain.Step{
		Description: "how similar is 600519?",
		TargetNode:  node.Name(),
	})

	require.Error(t, outcome.Err)
	assert.Contains(t, outcome.Err.Error(), "at least two tickers")
}

func TestSimilarityNode_DeduplicatesTickers(t *testing.T) {
	t.Parallel()

	node := capability.NewSimilarityNode(&fakeData{})

	st := newState("compare 600519 and 600519")
	outcome := node.Execute(context.Background(), st, domain.Step{
		Description: "compare 600519 and 600519",
		TargetNode:  node.Name(),
	})

	require.Error(t, outcome.Err)
	assert.Contains(t, outcome.Err.Error(), "got 1")
}
