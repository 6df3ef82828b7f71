package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/engine"
	"github.com/gosuda/stockai/internal/market"
)

// NewsNode retrieves recent market news for the request topic. More recent
// articles matter more for the current move, so results are ordered newest
// first and articles older than the lookback window are dropped when fresher
// ones exist.
type NewsNode struct {
	news     market.NewsProvider
	limit    int
	lookback time.Duration
}

func NewNewsNode(news market.NewsProvider) *NewsNode {
	return &NewsNode{
		news:     news,
		limit:    10,
		lookback: 7 * 24 * time.Hour,
	}
}

func (n *NewsNode) Name() string { return "market_news" }

func (n *NewsNode) Description() string {
	return "Retrieve and rank recent market news for a stock, sector or topic"
}

func (n *NewsNode) Execute(ctx context.Context, st *engine.AgentState, step domain.Step) engine.Outcome {
	topic := strings.TrimSpace(step.Description)
	if topic == "" {
		topic = strings.TrimSpace(st.UserInput)
	}

	items, err := n.news.GetRecentNews(ctx, topic, n.limit)
	if err != nil {
		return engine.Outcome{Err: fmt.Errorf("market_news: fetch for %q: %w", topic, err)}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	// Prefer the lookback window; fall back to everything when the window
	// is empty rather than reporting no news at all.
	cutoff := time.Now().Add(-n.lookback)
	var fresh []market.NewsItem
	for _, it := range items {
		if it.PublishedAt.After(cutoff) {
			fresh = append(fresh, it)
		}
	}
	note := ""
	if len(fresh) > 0 {
		items = fresh
	} else if len(items) > 0 {
		note = "no news inside the recent window; older articles reported instead"
	}

	payload, err := json.Marshal(map[string]any{
		"topic": topic,
		"count": len(items),
		"items": items,
		"note":  note,
	})
	if err != nil {
		return engine.Outcome{Err: fmt.Errorf("market_news: encode result: %w", err)}
	}

	return engine.Outcome{Result: string(payload)}
}
