package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/stockai/internal/domain"
)

// ReportStats is the machine-readable footer of a synthesized report.
type ReportStats struct {
	TotalSteps  int       `json:"total_steps"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Incomplete  bool      `json:"incomplete,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Summarizer synthesizes the final report from the full step set and closes
// the session. It is the sole component that moves a session to a terminal
// status.
type Summarizer struct {
	sessions domain.SessionRepository
	messages domain.MessageRepository
	events   EventPublisher
}

func NewSummarizer(sessions domain.SessionRepository, messages domain.MessageRepository, events EventPublisher) *Summarizer {
	return &Summarizer{
		sessions: sessions,
		messages: messages,
		events:   events,
	}
}

// BuildReport renders one structured report over the full step set. Failed
// steps are first-class inputs: they feed the risk section and the per-step
// breakdown, never silently dropped. The function is pure; aggregate counts
// depend only on step statuses, not on their order.
func BuildReport(steps []domain.Step, incomplete bool, reason string, now time.Time) (string, ReportStats) {
	var succeeded, failed []domain.Step
	for _, s := range steps {
		switch s.Status {
		case domain.StepStatusCompleted:
			succeeded = append(succeeded, s)
		case domain.StepStatusFailed:
			failed = append(failed, s)
		}
	}

	stats := ReportStats{
		TotalSteps:  len(succeeded) + len(failed),
		Succeeded:   len(succeeded),
		Failed:      len(failed),
		Incomplete:  incomplete,
		GeneratedAt: now,
	}

	var sb strings.Builder

	sb.WriteString("# Analysis Report\n\n")

	sb.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&sb, "Executed %d of %d planned analysis steps successfully.",
		stats.Succeeded, stats.TotalSteps)
	if stats.Failed > 0 {
		fmt.Fprintf(&sb, " %d step(s) failed; their findings are reported as caveats below.", stats.Failed)
	}
	if incomplete {
		sb.WriteString(" The plan was cut short before all intended work finished")
		if reason != "" {
			fmt.Fprintf(&sb, " (%s)", reason)
		}
		sb.WriteString("; treat this report as partial.")
	}
	sb.WriteString("\n\n")

	sb.WriteString("## Key Findings\n\n")
	if len(succeeded) == 0 {
		sb.WriteString("No analysis step completed successfully; no findings are available.\n")
	}
	for _, s := range succeeded {
		fmt.Fprintf(&sb, "- **%s** (%s): %s\n", s.Description, s.TargetNode, excerpt(s.Result, 300))
	}
	sb.WriteString("\n")

	sb.WriteString("## Recommendations\n\n")
	switch {
	case len(succeeded) == 0:
		sb.WriteString("- Re-run the request once the underlying data providers are reachable.\n")
	case stats.Failed > 0 || incomplete:
		sb.WriteString("- Findings above are based on the steps that completed; re-run the failed steps before acting on gaps they cover.\n")
		sb.WriteString("- Cross-check conclusions against the per-step details below.\n")
	default:
		sb.WriteString("- All planned steps completed; see per-step details below for the full evidence.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Risks & Caveats\n\n")
	if len(failed) == 0 && !incomplete {
		sb.WriteString("None: every planned step completed.\n")
	}
	for _, s := range failed {
		fmt.Fprintf(&sb, "- Step **%s** (%s) failed: %s\n", s.Description, s.TargetNode, s.Error)
	}
	if incomplete {
		sb.WriteString("- The plan terminated early; unexecuted steps are missing from this report.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Step Details\n\n")
	for i, s := range steps {
		fmt.Fprintf(&sb, "### %d. %s\n\n", i+1, s.Description)
		fmt.Fprintf(&sb, "- capability: `%s`\n- status: %s\n", s.TargetNode, s.Status)
		if s.Result != "" {
			fmt.Fprintf(&sb, "- result:\n\n```\n%s\n```\n", s.Result)
		}
		if s.Error != "" {
			fmt.Fprintf(&sb, "- error: %s\n", s.Error)
		}
		sb.WriteString("\n")
	}

	footer, err := json.Marshal(stats)
	if err == nil {
		fmt.Fprintf(&sb, "---\n\n```json\n%s\n```\n", footer)
	}

	return sb.String(), stats
}

// Finalize renders the report, persists it as an assistant message, closes
// the session, and publishes the completion event. Persistence and publish
// failures are logged and swallowed so the caller always receives the report.
func (s *Summarizer) Finalize(ctx context.Context, st *AgentState, incomplete bool, reason string) (string, ReportStats) {
	report, stats := BuildReport(st.Plan, incomplete, reason, time.Now())

	msg := &domain.Message{
		ID:          uuid.New(),
		SessionID:   st.SessionID,
		Role:        domain.RoleAssistant,
		Content:     report,
		Timestamp:   time.Now(),
		MessageType: domain.MessageTypeText,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		log.Error().Err(err).
			Str("session_id", st.SessionID.String()).
			Msg("engine.Summarizer.Finalize: report message write failed")
	}

	status := domain.SessionStatusCompleted
	if stats.Succeeded == 0 {
		status = domain.SessionStatusFailed
	}
	if err := s.sessions.UpdateStatus(ctx, st.SessionID, status); err != nil {
		log.Error().Err(err).
			Str("session_id", st.SessionID.String()).
			Str("status", string(status)).
			Msg("engine.Summarizer.Finalize: session close failed")
	}

	s.publish(ctx, st.SessionID, status, stats)

	return report, stats
}

func (s *Summarizer) publish(ctx context.Context, sessionID uuid.UUID, status domain.SessionStatus, stats ReportStats) {
	if s.events == nil {
		return
	}

	evt := map[string]any{
		"type":       "session_completed",
		"session_id": sessionID.String(),
		"status":     status,
		"total":      stats.TotalSteps,
		"succeeded":  stats.Succeeded,
		"failed":     stats.Failed,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}

	if pubErr := s.events.Publish(ctx, "session:"+sessionID.String(), payload); pubErr != nil {
		log.Error().Err(pubErr).
			Str("session_id", sessionID.String()).
			Msg("engine.Summarizer.publish: completion event publish failed")
	}
}

// excerpt shortens a result to n runes for the findings list. Cutting on
// runes, not bytes, keeps multi-byte text valid; node results are routinely
// CJK and an invalid-UTF-8 report would be rejected by the message store.
func excerpt(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
