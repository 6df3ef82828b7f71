package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/engine"
	"github.com/gosuda/stockai/internal/llm"
	"github.com/gosuda/stockai/internal/market"
)

// TrendNode analyzes a security's price trend: overall direction over the
// fetched range, the most recent sessions, volume/price relation, and the
// distance to the nearest support and resistance levels.
type TrendNode struct {
	data market.DataProvider
}

func NewTrendNode(data market.DataProvider) *TrendNode {
	return &TrendNode{data: data}
}

func (n *TrendNode) Name() string { return "trend_analyze" }

func (n *TrendNode) Description() string {
	return "Analyze price and volume trend of a stock or index over daily history"
}

type trendResult struct {
	Ticker        string  `json:"ticker"`
	Bars          int     `json:"bars"`
	ChangePct     float64 `json:"change_pct"`
	Direction     string  `json:"direction"`
	Support       float64 `json:"support"`
	Resistance    float64 `json:"resistance"`
	SupportGapPct float64 `json:"support_gap_pct"`
	ResistGapPct  float64 `json:"resist_gap_pct"`
	RecentNote    string  `json:"recent_note"`
	VolumeNote    string  `json:"volume_note"`
}

func (n *TrendNode) Execute(ctx context.Context, st *engine.AgentState, step domain.Step) engine.Outcome {
	tickers := resolveTickers(st, step)
	if len(tickers) == 0 {
		return engine.Outcome{Err: fmt.Errorf("trend_analyze: no ticker found in request %q", step.Description)}
	}

	var (
		results  []trendResult
		failures []string
	)
	for _, ticker := range tickers {
		candles, err := n.data.GetHistory(ctx, ticker, "1d", "3mo")
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", ticker, err))
			continue
		}
		if len(candles) < 2 {
			failures = append(failures, fmt.Sprintf("%s: not enough history (%d bars)", ticker, len(candles)))
			continue
		}
		results = append(results, analyzeTrend(ticker, candles))
	}

	if len(results) == 0 {
		return engine.Outcome{Err: fmt.Errorf("trend_analyze: all tickers failed: %s", strings.Join(failures, "; "))}
	}

	payload, err := json.Marshal(map[string]any{
		"trends":   results,
		"failures": failures,
	})
	if err != nil {
		return engine.Outcome{Err: fmt.Errorf("trend_analyze: encode result: %w", err)}
	}

	return engine.Outcome{Result: string(payload)}
}

func analyzeTrend(ticker string, candles []market.Candle) trendResult {
	first, last := candles[0], candles[len(candles)-1]

	changePct := 0.0
	if first.Close != 0 {
		changePct = (last.Close - first.Close) / first.Close * 100
	}

	direction := "sideways"
	switch {
	case changePct > 3:
		direction = "up"
	case changePct < -3:
		direction = "down"
	}

	// Support is the lowest low, resistance the highest high of the range.
	support, resistance := candles[0].Low, candles[0].High
	for _, c := range candles {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}

	supportGap, resistGap := 0.0, 0.0
	if last.Close != 0 {
		supportGap = (last.Close - support) / last.Close * 100
		resistGap = (resistance - last.Close) / last.Close * 100
	}

	return trendResult{
		Ticker:        ticker,
		Bars:          len(candles),
		ChangePct:     round2(changePct),
		Direction:     direction,
		Support:       support,
		Resistance:    resistance,
		SupportGapPct: round2(supportGap),
		ResistGapPct:  round2(resistGap),
		RecentNote:    recentNote(candles),
		VolumeNote:    volumeNote(candles),
	}
}

// recentNote describes the last five sessions.
func recentNote(candles []market.Candle) string {
	n := 5
	if len(candles) < n+1 {
		n = len(candles) - 1
	}
	recent := candles[len(candles)-n-1:]

	up := 0
	for i := 1; i < len(recent); i++ {
		if recent[i].Close > recent[i-1].Close {
			up++
		}
	}

	changePct := 0.0
	if recent[0].Close != 0 {
		changePct = (recent[len(recent)-1].Close - recent[0].Close) / recent[0].Close * 100
	}

	return fmt.Sprintf("last %d sessions: %d up, %d down, net %.2f%%", n, up, n-up, changePct)
}

// volumeNote relates the recent volume to the range average.
func volumeNote(candles []market.Candle) string {
	var total float64
	for _, c := range candles {
		total += c.Volume
	}
	avg := total / float64(len(candles))
	if avg == 0 {
		return "no volume data"
	}

	lastVol := candles[len(candles)-1].Volume
	ratio := lastVol / avg

	switch {
	case ratio > 1.5:
		return fmt.Sprintf("latest volume %.1fx above range average (expansion)", ratio)
	case ratio < 0.5:
		return fmt.Sprintf("latest volume %.1fx of range average (contraction)", ratio)
	default:
		return fmt.Sprintf("latest volume near range average (%.1fx)", ratio)
	}
}

// resolveTickers pulls tickers from the step description, falling back to
// leading stocks identified by an earlier step.
func resolveTickers(st *engine.AgentState, step domain.Step) []string {
	tickers := llm.ExtractTickers(step.Description)
	if len(tickers) > 0 {
		return tickers
	}
	if leaders, ok := st.Facts["leading_stocks"]; ok && leaders != "" {
		return strings.Split(leaders, ",")
	}
	return llm.ExtractTickers(st.UserInput)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
