package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/llm"
)

func failedStep() domain.Step {
	return domain.Step{
		StepID:      "step-1",
		Description: "fetch news",
		TargetNode:  "market_news",
		Status:      domain.StepStatusFailed,
		Error:       "feed unavailable",
	}
}

func allCapabilities() []llm.Capability {
	return []llm.Capability{
		{Name: "concept_overlap", Description: "overlap of concept groups"},
		{Name: "concept_selection", Description: "select concept groups"},
		{Name: "leading_stock", Description: "identify leading stocks"},
		{Name: "market_news", Description: "recent market news"},
		{Name: "similarity_analyze", Description: "pairwise stock similarity"},
		{Name: "trend_analyze", Description: "price and volume trend"},
	}
}

func TestExtractTickers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"000001", "600036"}, llm.ExtractTickers("分析 000001 和 600036 的相似度"))
	assert.Empty(t, llm.ExtractTickers("no codes here"))
	// Seven digits is not a ticker.
	assert.Empty(t, llm.ExtractTickers("order 1234567"))
}

func TestRulePlanner_ClassifyGreeting(t *testing.T) {
	t.Parallel()

	p := llm.NewRulePlanner()

	decision, err := p.Classify(context.Background(), nil, "你好")
	require.NoError(t, err)
	assert.False(t, decision.NeedsPlan)
	assert.NotEmpty(t, decision.Reply)
}

func TestRulePlanner_ClassifyEmpty(t *testing.T) {
	t.Parallel()

	p := llm.NewRulePlanner()

	decision, err := p.Classify(context.Background(), nil, "   ")
	require.NoError(t, err)
	assert.False(t, decision.NeedsPlan)
	assert.NotEmpty(t, decision.Reply)
}

func TestRulePlanner_ClassifyAnalysisRequest(t *testing.T) {
	t.Parallel()

	p := llm.NewRulePlanner()

	for _, text := range []string{
		"分析 000001 的走势",
		"600519",
		"semiconductor sector news",
	} {
		decision, err := p.Classify(context.Background(), nil, text)
		require.NoError(t, err)
		assert.True(t, decision.NeedsPlan, "expected plan for %q", text)
	}
}

func TestRulePlanner_PlanSimilarity(t *testing.T) {
	t.Parallel()

	p := llm.NewRulePlanner()

	steps, err := p.Plan(context.Background(), nil, "分析 000001 和 600036 的相似度", allCapabilities())
	require.NoError(t, err)
	require.NotEmpty(t, steps)
	assert.Equal(t, "similarity_analyze", steps[0].TargetNode)
	assert.Contains(t, steps[0].Description, "000001")
}

func TestRulePlanner_PlanSectorLeaders(t *testing.T) {
	t.Parallel()

	p := llm.NewRulePlanner()

	steps, err := p.Plan(context.Background(), nil, "半导体板块的龙头股", allCapabilities())
	require.NoError(t, err)
	require.Len(t, steps, 2)
	// Concept selection runs before leader identification so the leaders
	// step can consume the selected groups.
	assert.Equal(t, "concept_selection", steps[0].TargetNode)
	assert.Equal(t, "leading_stock", steps[1].TargetNode)
}

func TestRulePlanner_PlanTickerDefaultsToTrend(t *testing.T) {
	t.Parallel()

	p := llm.NewRulePlanner()

	steps, err := p.Plan(context.Background(), nil, "600519 怎么样", allCapabilities())
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "trend_analyze", steps[0].TargetNode)
}

func TestRulePlanner_PlanNoMatch(t *testing.T) {
	t.Parallel()

	p := llm.NewRulePlanner()

	_, err := p.Plan(context.Background(), nil, "tell me a joke", allCapabilities())
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrMalformedPlan)
}

func TestRulePlanner_PlanSkipsUnregisteredCapabilities(t *testing.T) {
	t.Parallel()

	p := llm.NewRulePlanner()

	// Only trend is registered; a similarity request routes nowhere else.
	caps := []llm.Capability{{Name: "trend_analyze", Description: "trend"}}
	steps, err := p.Plan(context.Background(), nil, "分析 000001 和 600036 的相似度", allCapabilities()[:0:0])
	require.Error(t, err)
	assert.Empty(t, steps)

	steps, err = p.Plan(context.Background(), nil, "分析 000001 和 600036 的相似度", caps)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "trend_analyze", steps[0].TargetNode)
}

func TestRulePlanner_ReviseKeepsRemaining(t *testing.T) {
	t.Parallel()

	p := llm.NewRulePlanner()

	steps, err := p.Revise(context.Background(), failedStep(), []llm.PlannedStep{{Description: "next", TargetNode: "market_news"}}, allCapabilities())
	require.NoError(t, err)
	assert.Empty(t, steps)
}
