package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/engine"
	"github.com/gosuda/stockai/internal/market"
)

// SimilarityNode scores multi-stock similarity pairwise: a basic-info
// comparison (industry, valuation, size), a technical-pattern comparison
// (correlation of daily returns), and a combined weighted ranking. A fetch
// failure for one symbol fails only the pairs involving it; the step fails
// only when no pair can be scored at all.
type SimilarityNode struct {
	data market.DataProvider

	basicWeight float64
	techWeight  float64
}

func NewSimilarityNode(data market.DataProvider) *SimilarityNode {
	return &SimilarityNode{
		data:        data,
		basicWeight: 0.4,
		techWeight:  0.6,
	}
}

func (n *SimilarityNode) Name() string { return "similarity_analyze" }

func (n *SimilarityNode) Description() string {
	return "Score pairwise similarity between stocks by fundamentals and price pattern"
}

type stockData struct {
	info    *market.BasicInfo
	returns []float64
}

type pairScore struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	BasicScore float64 `json:"basic_score"`
	TechScore  float64 `json:"tech_score"`
	Combined   float64 `json:"combined"`
}

func (n *SimilarityNode) Execute(ctx context.Context, st *engine.AgentState, step domain.Step) engine.Outcome {
	tickers := uniqueTickers(resolveTickers(st, step))
	if len(tickers) < 2 {
		return engine.Outcome{Err: fmt.Errorf("similarity_analyze: need at least two tickers, got %d in %q", len(tickers), step.Description)}
	}

	fetched := make(map[string]stockData, len(tickers))

	var failures []string
	for _, ticker := range tickers {
		info, err := n.data.GetBasicInfo(ctx, ticker)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: basic info: %v", ticker, err))
			continue
		}

		candles, err := n.data.GetHistory(ctx, ticker, "1d", "3mo")
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: history: %v", ticker, err))
			continue
		}

		fetched[ticker] = stockData{info: info, returns: dailyReturns(candles)}
	}

	var pairs []pairScore
	for i := 0; i < len(tickers); i++ {
		for j := i + 1; j < len(tickers); j++ {
			a, okA := fetched[tickers[i]]
			b, okB := fetched[tickers[j]]
			if !okA || !okB {
				continue
			}

			basic := basicInfoScore(a.info, b.info)
			tech := similarityScore(pearson(a.returns, b.returns))
			pairs = append(pairs, pairScore{
				A:          tickers[i],
				B:          tickers[j],
				BasicScore: round4(basic),
				TechScore:  round4(tech),
				Combined:   round4(n.basicWeight*basic + n.techWeight*tech),
			})
		}
	}

	if len(pairs) == 0 {
		return engine.Outcome{Err: fmt.Errorf("similarity_analyze: no pair could be scored: %s", strings.Join(failures, "; "))}
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Combined > pairs[j].Combined })

	payload, err := json.Marshal(map[string]any{
		"pairs":    pairs,
		"failures": failures,
	})
	if err != nil {
		return engine.Outcome{Err: fmt.Errorf("similarity_analyze: encode result: %w", err)}
	}

	return engine.Outcome{Result: string(payload)}
}

// basicInfoScore compares fundamentals: same industry carries half the
// score, market-cap and PE proximity the rest. All components land in [0, 1].
func basicInfoScore(a, b *market.BasicInfo) float64 {
	score := 0.0
	if a.Industry != "" && a.Industry == b.Industry {
		score += 0.5
	}
	score += 0.25 * ratioCloseness(a.MarketCap, b.MarketCap)
	score += 0.25 * ratioCloseness(a.PE, b.PE)
	return score
}

// ratioCloseness maps the ratio of two positive values to [0, 1]; equal
// values score 1, an order-of-magnitude gap approaches 0.
func ratioCloseness(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	ratio := a / b
	if ratio > 1 {
		ratio = 1 / ratio
	}
	return ratio
}

func uniqueTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	var out []string
	for _, t := range tickers {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
