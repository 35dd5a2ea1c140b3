package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/coderlang-ai/coderlang/evaluation"
)

// Summary is the structured outcome of a completed workflow run. Field
// precedence mirrors the stage machine: docstring-annotated code supersedes
// the raw generation, and a dedicated explanation wins over general chat.
type Summary struct {
	Intent        string   `json:"intent"`
	GeneratedCode string   `json:"generated_code,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
	Tests         string   `json:"tests,omitempty"`
	Translation   string   `json:"translation,omitempty"`
	Safety        string   `json:"safety,omitempty"`
	Evaluation    string   `json:"evaluation,omitempty"`
	Score         int      `json:"score,omitempty"`
	Latency       string   `json:"latency"`
	Stage         string   `json:"stage"`
	Logs          []string `json:"logs,omitempty"`
}

// PrimaryText returns the most useful single text for a chat-style reply.
func (s *Summary) PrimaryText() string {
	if s.GeneratedCode != "" {
		return s.GeneratedCode
	}

	if s.Explanation != "" {
		return s.Explanation
	}

	return s.Intent
}

// SummaryFromState decodes a summary previously persisted into session state.
// Both in-memory (*Summary or map) and SQLite (map after JSON round trip)
// representations are accepted.
func SummaryFromState(v any) (*Summary, bool) {
	if s, ok := v.(*Summary); ok {
		return s, true
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}

	var s Summary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, false
	}

	return &s, true
}

func buildSummary(plan *Plan, results map[string]workerResult, logs []string, elapsed time.Duration, stage string) *Summary {
	intent := plan.IntentSummary
	if intent == "" {
		intent = "Task"
	}

	code := results[RoleDocstring].Text
	if code == "" {
		code = results[RoleCodeGen].Text
	}

	explanation := results[RoleExplain].Text
	if explanation == "" {
		explanation = results[RoleGeneral].Text
	}

	s := &Summary{
		Intent:        intent,
		GeneratedCode: code,
		Explanation:   explanation,
		Tests:         results[RoleTestGen].Text,
		Translation:   results[RoleTranslate].Text,
		Safety:        results[RoleSafety].Text,
		Evaluation:    results[RoleEvaluator].Text,
		Latency:       fmt.Sprintf("%.2fs", elapsed.Seconds()),
		Stage:         stage,
		Logs:          logs,
	}

	if s.Evaluation != "" {
		s.Score = evaluation.ParseVerdict(s.Evaluation).Score
	}

	return s
}
