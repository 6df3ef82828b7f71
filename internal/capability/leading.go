package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/engine"
	"github.com/gosuda/stockai/internal/market"
)

// LeadingStockNode identifies the leading stocks within each selected
// concept group, ranked by daily change and turnover. One group failing to
// load does not fail the step; per-group failures are reported alongside the
// leaders found.
type LeadingStockNode struct {
	concepts market.ConceptProvider
	topN     int
}

func NewLeadingStockNode(concepts market.ConceptProvider) *LeadingStockNode {
	return &LeadingStockNode{concepts: concepts, topN: 3}
}

func (n *LeadingStockNode) Name() string { return "leading_stock" }

func (n *LeadingStockNode) Description() string {
	return "Identify leading stocks within selected concept groups"
}

type conceptLeaders struct {
	Concept string                `json:"concept"`
	Leaders []market.ConceptStock `json:"leaders"`
}

func (n *LeadingStockNode) Execute(ctx context.Context, st *engine.AgentState, step domain.Step) engine.Outcome {
	groups := resolveConceptNames(ctx, n.concepts, st, step)
	if len(groups) == 0 {
		return engine.Outcome{Err: fmt.Errorf("leading_stock: no concept group resolved from request %q", step.Description)}
	}

	var (
		results  []conceptLeaders
		failures []string
		tickers  []string
	)
	for _, name := range groups {
		stocks, err := n.concepts.GetConceptStocks(ctx, name)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if len(stocks) == 0 {
			failures = append(failures, fmt.Sprintf("%s: no constituents", name))
			continue
		}

		sort.SliceStable(stocks, func(i, j int) bool {
			if stocks[i].ChangePct != stocks[j].ChangePct {
				return stocks[i].ChangePct > stocks[j].ChangePct
			}
			return stocks[i].Turnover > stocks[j].Turnover
		})

		top := n.topN
		if len(stocks) < top {
			top = len(stocks)
		}
		results = append(results, conceptLeaders{Concept: name, Leaders: stocks[:top]})
		for _, s := range stocks[:top] {
			tickers = append(tickers, s.Ticker)
		}
	}

	if len(results) == 0 {
		return engine.Outcome{Err: fmt.Errorf("leading_stock: all groups failed: %s", strings.Join(failures, "; "))}
	}

	payload, err := json.Marshal(map[string]any{
		"groups":   results,
		"failures": failures,
	})
	if err != nil {
		return engine.Outcome{Err: fmt.Errorf("leading_stock: encode result: %w", err)}
	}

	return engine.Outcome{
		Result: string(payload),
		Facts:  map[string]string{"leading_stocks": strings.Join(tickers, ",")},
	}
}

// resolveConceptNames prefers groups selected by an earlier step, then falls
// back to matching the provider's concept list against the request text.
func resolveConceptNames(ctx context.Context, provider market.ConceptProvider, st *engine.AgentState, step domain.Step) []string {
	if v, ok := st.Facts["concepts"]; ok && v != "" {
		return strings.Split(v, ",")
	}

	all, err := provider.ListConcepts(ctx)
	if err != nil {
		return nil
	}

	matched := matchConcepts(all, step.Description+" "+st.UserInput, 5)
	names := make([]string, 0, len(matched))
	for _, c := range matched {
		names = append(names, c.Name)
	}

	return names
}
