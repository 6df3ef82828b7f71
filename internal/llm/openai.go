package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gosuda/stockai/internal/domain"
)

// OpenAIPlanner implements Planner against an OpenAI-compatible
// chat-completions endpoint. All three operations prompt for strict JSON and
// reject responses that do not parse.
type OpenAIPlanner struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	http        *http.Client
}

func NewOpenAIPlanner(baseURL, apiKey, model string, temperature float64, timeout time.Duration) *OpenAIPlanner {
	return &OpenAIPlanner{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		http:        &http.Client{Timeout: timeout},
	}
}

const classifySystemPrompt = `You are the coordinator of a stock analysis assistant.
Decide whether the user's message needs a multi-step analysis plan or can be answered directly.
Greetings, small talk and questions about the assistant itself are answered directly, in the user's language.
Respond with strict JSON only: {"mode":"reply","reply":"..."} or {"mode":"plan"}.`

const planSystemPromptFmt = `You are the planner of a stock analysis assistant.
Break the user's request into an ordered list of steps. Each step targets exactly one capability from this registry:
%s
Respond with strict JSON only: {"steps":[{"description":"...","target_node":"..."}]}.
Use as few steps as possible; steps run strictly in order.`

const reviseSystemPromptFmt = `You are the planner of a stock analysis assistant.
A plan step failed. Decide whether the remaining steps should be revised.
Failed step: %s (capability %s), error: %s
Capabilities:
%s
Respond with strict JSON only: {"steps":[...]} using the same step shape as planning.
Return {"steps":[]} to keep the remaining steps unchanged.`

func (p *OpenAIPlanner) Classify(ctx context.Context, history []*domain.Message, text string) (Decision, error) {
	content, err := p.complete(ctx, classifySystemPrompt, history, text)
	if err != nil {
		return Decision{}, fmt.Errorf("llm.OpenAIPlanner.Classify: %w", err)
	}

	var out struct {
		Mode  string `json:"mode"`
		Reply string `json:"reply"`
	}
	if err = json.Unmarshal([]byte(content), &out); err != nil {
		return Decision{}, fmt.Errorf("llm.OpenAIPlanner.Classify: decode %q: %w", truncate(content), ErrMalformedPlan)
	}

	switch out.Mode {
	case "reply":
		if out.Reply == "" {
			return Decision{}, fmt.Errorf("llm.OpenAIPlanner.Classify: empty reply: %w", ErrMalformedPlan)
		}
		return Decision{Reply: out.Reply}, nil
	case "plan":
		return Decision{NeedsPlan: true}, nil
	default:
		return Decision{}, fmt.Errorf("llm.OpenAIPlanner.Classify: mode %q: %w", out.Mode, ErrMalformedPlan)
	}
}

func (p *OpenAIPlanner) Plan(ctx context.Context, history []*domain.Message, text string, caps []Capability) ([]PlannedStep, error) {
	system := fmt.Sprintf(planSystemPromptFmt, formatCapabilities(caps))

	content, err := p.complete(ctx, system, history, text)
	if err != nil {
		return nil, fmt.Errorf("llm.OpenAIPlanner.Plan: %w", err)
	}

	steps, err := parseSteps(content)
	if err != nil {
		return nil, fmt.Errorf("llm.OpenAIPlanner.Plan: %w", err)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("llm.OpenAIPlanner.Plan: empty step list: %w", ErrMalformedPlan)
	}

	return steps, nil
}

func (p *OpenAIPlanner) Revise(ctx context.Context, failed domain.Step, remaining []PlannedStep, caps []Capability) ([]PlannedStep, error) {
	system := fmt.Sprintf(reviseSystemPromptFmt,
		failed.Description, failed.TargetNode, failed.Error, formatCapabilities(caps))

	payload, err := json.Marshal(map[string]any{"remaining_steps": remaining})
	if err != nil {
		return nil, fmt.Errorf("llm.OpenAIPlanner.Revise: encode remaining: %w", err)
	}

	content, err := p.complete(ctx, system, nil, string(payload))
	if err != nil {
		return nil, fmt.Errorf("llm.OpenAIPlanner.Revise: %w", err)
	}

	steps, err := parseSteps(content)
	if err != nil {
		return nil, fmt.Errorf("llm.OpenAIPlanner.Revise: %w", err)
	}

	return steps, nil
}

func parseSteps(content string) ([]PlannedStep, error) {
	var out struct {
		Steps []PlannedStep `json:"steps"`
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("decode %q: %w", truncate(content), ErrMalformedPlan)
	}
	for _, s := range out.Steps {
		if s.TargetNode == "" {
			return nil, fmt.Errorf("step %q has no target node: %w", s.Description, ErrMalformedPlan)
		}
	}
	return out.Steps, nil
}

func formatCapabilities(caps []Capability) string {
	var sb strings.Builder
	for _, c := range caps {
		sb.WriteString("- ")
		sb.WriteString(c.Name)
		sb.WriteString(": ")
		sb.WriteString(c.Description)
		sb.WriteString("\n")
	}
	return sb.String()
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// complete runs one chat completion. History is truncated to the most recent
// exchanges to bound request size.
func (p *OpenAIPlanner) complete(ctx context.Context, system string, history []*domain.Message, text string) (string, error) {
	const maxHistory = 20

	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: system})

	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	for _, m := range history {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: text})

	body, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var out chatResponse
	if err = json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode body (status %d): %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("api error (status %d): %s", resp.StatusCode, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices in response (status %d)", resp.StatusCode)
	}

	return stripCodeFence(out.Choices[0].Message.Content), nil
}

// stripCodeFence unwraps ```json ... ``` fences some models emit despite
// being asked for bare JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string) string {
	const n = 120
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
