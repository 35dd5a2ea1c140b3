package orchestrator

import (
	"encoding/json"
	"strings"
)

// Plan is the router's decision about which worker roles to activate for a
// request and whether they may run concurrently within a stage.
type Plan struct {
	IntentSummary  string   `json:"intent_summary"`
	AgentsToRun    []string `json:"agents_to_run"`
	Parallelizable bool     `json:"parallelizable"`
}

// FallbackPlan is used when the router output cannot be parsed. It degrades
// the request to a plain chat turn.
func FallbackPlan() *Plan {
	return &Plan{
		IntentSummary:  "Fallback",
		AgentsToRun:    []string{RoleGeneral},
		Parallelizable: false,
	}
}

// ParsePlan decodes a router completion into a Plan. Markdown code fences are
// stripped first. A completion that is not valid JSON yields the fallback
// plan; a valid plan with an empty agent list is normalized to GeneralAgent.
func ParsePlan(raw string) *Plan {
	var plan Plan
	if err := json.Unmarshal([]byte(StripFences(raw)), &plan); err != nil {
		return FallbackPlan()
	}

	if len(plan.AgentsToRun) == 0 {
		plan.AgentsToRun = []string{RoleGeneral}
	}

	return &plan
}

// Has reports whether the plan activates the given worker role.
func (p *Plan) Has(role string) bool {
	for _, a := range p.AgentsToRun {
		if a == role {
			return true
		}
	}

	return false
}

// StripFences removes markdown code fence markers from a model completion.
func StripFences(s string) string {
	if !strings.Contains(s, "```") {
		return strings.TrimSpace(s)
	}

	r := strings.NewReplacer("```json", "", "```python", "", "```", "")

	return strings.TrimSpace(r.Replace(s))
}
