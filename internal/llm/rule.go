package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gosuda/stockai/internal/domain"
)

// RulePlanner is a deterministic, keyword-driven Planner used when no LLM API
// key is configured. It routes by matching request text against capability
// vocabularies and produces single- or multi-step plans.
type RulePlanner struct{}

func NewRulePlanner() *RulePlanner {
	return &RulePlanner{}
}

var tickerPattern = regexp.MustCompile(`\b\d{6}\b`)

// ExtractTickers returns 6-digit security codes found in the text, in order.
func ExtractTickers(text string) []string {
	return tickerPattern.FindAllString(text, -1)
}

func (p *RulePlanner) Classify(_ context.Context, _ []*domain.Message, text string) (Decision, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Decision{Reply: "请告诉我您想分析的股票、板块或市场问题。"}, nil
	}

	if len(ExtractTickers(trimmed)) == 0 && !containsAny(trimmed, analysisKeywords) {
		return Decision{Reply: "您好，我是股票分析助手。请提供股票代码或说明您想分析的内容，例如：分析 000001 的走势。"}, nil
	}

	return Decision{NeedsPlan: true}, nil
}

var analysisKeywords = []string{
	"分析", "走势", "趋势", "新闻", "消息", "板块", "概念", "龙头", "相似", "重叠",
	"trend", "news", "sector", "concept", "similar", "overlap", "analy",
}

type rule struct {
	node     string
	keywords []string
}

// Routing rules, checked in order. The first matching rule contributes the
// plan's leading step; later matches append follow-up steps.
var routingRules = []rule{
	{node: "similarity_analyze", keywords: []string{"相似", "similar", "对比", "compare"}},
	{node: "concept_overlap", keywords: []string{"重叠", "overlap", "交集"}},
	{node: "market_news", keywords: []string{"新闻", "消息", "news", "原因"}},
	{node: "concept_selection", keywords: []string{"板块", "概念", "sector", "concept"}},
	{node: "leading_stock", keywords: []string{"龙头", "leading", "领涨"}},
	{node: "trend_analyze", keywords: []string{"走势", "趋势", "trend", "分析", "analy"}},
}

func (p *RulePlanner) Plan(_ context.Context, _ []*domain.Message, text string, caps []Capability) ([]PlannedStep, error) {
	registered := make(map[string]string, len(caps))
	for _, c := range caps {
		registered[c.Name] = c.Description
	}

	var steps []PlannedStep
	for _, r := range routingRules {
		if _, ok := registered[r.node]; !ok {
			continue
		}
		if !containsAny(text, r.keywords) {
			continue
		}
		steps = append(steps, PlannedStep{
			Description: fmt.Sprintf("%s: %s", registered[r.node], strings.TrimSpace(text)),
			TargetNode:  r.node,
		})
	}

	// A request carrying tickers but no recognized keyword defaults to trend
	// analysis when registered.
	if len(steps) == 0 {
		if desc, ok := registered["trend_analyze"]; ok && len(ExtractTickers(text)) > 0 {
			steps = append(steps, PlannedStep{
				Description: fmt.Sprintf("%s: %s", desc, strings.TrimSpace(text)),
				TargetNode:  "trend_analyze",
			})
		}
	}

	if len(steps) == 0 {
		return nil, fmt.Errorf("llm.RulePlanner.Plan: no capability matches request: %w", ErrMalformedPlan)
	}

	return steps, nil
}

// Revise keeps the remaining steps unchanged; the rule planner has no basis
// for remediation beyond skip-and-continue.
func (p *RulePlanner) Revise(_ context.Context, _ domain.Step, _ []PlannedStep, _ []Capability) ([]PlannedStep, error) {
	return nil, nil
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
