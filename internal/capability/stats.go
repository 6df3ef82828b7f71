package capability

import (
	"math"

	"github.com/gosuda/stockai/internal/market"
)

// dailyReturns converts a candle series into simple close-to-close returns.
func dailyReturns(candles []market.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (candles[i].Close-prev)/prev)
	}

	return returns
}

// pearson computes the Pearson correlation coefficient of two equal-length
// series. Series are truncated to the shorter length; fewer than two points
// or zero variance yields 0.
func pearson(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	a, b = a[:n], b[:n]

	var sumA, sumB float64
	for i := range n {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/float64(n), sumB/float64(n)

	var cov, varA, varB float64
	for i := range n {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}

	return cov / math.Sqrt(varA*varB)
}

// similarityScore maps a correlation in [-1, 1] to a score in [0, 1].
func similarityScore(corr float64) float64 {
	score := (corr + 1) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
