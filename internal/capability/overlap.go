package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/engine"
	"github.com/gosuda/stockai/internal/market"
)

// OverlapNode computes pairwise constituent overlap across N concept groups.
// The batch applies an internal partial-success policy: a failure loading one
// group invalidates only the pairs involving it, and the node returns
// aggregate statistics plus a per-item failure list instead of failing the
// whole step. The step fails only when fewer than two groups load.
type OverlapNode struct {
	concepts market.ConceptProvider
}

func NewOverlapNode(concepts market.ConceptProvider) *OverlapNode {
	return &OverlapNode{concepts: concepts}
}

func (n *OverlapNode) Name() string { return "concept_overlap" }

func (n *OverlapNode) Description() string {
	return "Compute pairwise constituent overlap across concept groups"
}

// PairOverlap is the overlap measurement for one pair of groups. The ratio
// uses the smaller group as denominator.
type PairOverlap struct {
	GroupA       string  `json:"group_a"`
	GroupB       string  `json:"group_b"`
	SizeA        int     `json:"size_a"`
	SizeB        int     `json:"size_b"`
	OverlapCount int     `json:"overlap_count"`
	OverlapRatio float64 `json:"overlap_ratio"`
}

// OverlapStats aggregates the scored pairs.
type OverlapStats struct {
	Pairs      int     `json:"pairs"`
	MaxOverlap float64 `json:"max_overlap"`
	MinOverlap float64 `json:"min_overlap"`
	AvgOverlap float64 `json:"avg_overlap"`
}

func (n *OverlapNode) Execute(ctx context.Context, st *engine.AgentState, step domain.Step) engine.Outcome {
	groups := resolveConceptNames(ctx, n.concepts, st, step)
	if len(groups) < 2 {
		return engine.Outcome{Err: fmt.Errorf("concept_overlap: need at least two groups, resolved %d from %q", len(groups), step.Description)}
	}

	members := make(map[string]map[string]struct{}, len(groups))

	var loaded []string
	var failures []string
	for _, name := range groups {
		stocks, err := n.concepts.GetConceptStocks(ctx, name)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		set := make(map[string]struct{}, len(stocks))
		for _, s := range stocks {
			if s.Ticker != "" {
				set[s.Ticker] = struct{}{}
			}
		}
		members[name] = set
		loaded = append(loaded, name)
	}

	if len(loaded) < 2 {
		return engine.Outcome{Err: fmt.Errorf("concept_overlap: fewer than two groups loaded: %s", strings.Join(failures, "; "))}
	}

	var pairs []PairOverlap
	for i := 0; i < len(loaded); i++ {
		for j := i + 1; j < len(loaded); j++ {
			pairs = append(pairs, measureOverlap(loaded[i], loaded[j], members[loaded[i]], members[loaded[j]]))
		}
	}

	payload, err := json.Marshal(map[string]any{
		"pairs":    pairs,
		"stats":    aggregateOverlap(pairs),
		"failures": failures,
	})
	if err != nil {
		return engine.Outcome{Err: fmt.Errorf("concept_overlap: encode result: %w", err)}
	}

	return engine.Outcome{Result: string(payload)}
}

func measureOverlap(nameA, nameB string, a, b map[string]struct{}) PairOverlap {
	count := 0
	for ticker := range a {
		if _, ok := b[ticker]; ok {
			count++
		}
	}

	minSize := len(a)
	if len(b) < minSize {
		minSize = len(b)
	}

	ratio := 0.0
	if minSize > 0 {
		ratio = float64(count) / float64(minSize)
	}

	return PairOverlap{
		GroupA:       nameA,
		GroupB:       nameB,
		SizeA:        len(a),
		SizeB:        len(b),
		OverlapCount: count,
		OverlapRatio: round4(ratio),
	}
}

func aggregateOverlap(pairs []PairOverlap) OverlapStats {
	stats := OverlapStats{Pairs: len(pairs)}
	if len(pairs) == 0 {
		return stats
	}

	stats.MaxOverlap = pairs[0].OverlapRatio
	stats.MinOverlap = pairs[0].OverlapRatio

	var sum float64
	for _, p := range pairs {
		if p.OverlapRatio > stats.MaxOverlap {
			stats.MaxOverlap = p.OverlapRatio
		}
		if p.OverlapRatio < stats.MinOverlap {
			stats.MinOverlap = p.OverlapRatio
		}
		sum += p.OverlapRatio
	}
	stats.AvgOverlap = round4(sum / float64(len(pairs)))

	return stats
}
