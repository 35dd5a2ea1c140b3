package flow

import (
	"fmt"

	"github.com/coderlang-ai/coderlang/core"
	internalutil "github.com/coderlang-ai/coderlang/internal/util"
	"github.com/coderlang-ai/coderlang/model"
)

// InstructionsProcessor resolves the agent's instruction into the request's
// system prompt, rendering {{key}} placeholders from session state.
type InstructionsProcessor struct{}

func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

func (p *InstructionsProcessor) Name() string { return "instructions" }

func (p *InstructionsProcessor) ProcessRequest(rc *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(rc)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	rc.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(instructions))

	if rc.Session != nil && rc.Session.State != nil {
		rendered, tplErr := internalutil.RenderTemplate(instructions, rc.Session.State)
		if tplErr != nil {
			return fmt.Errorf("failed to render template: %w", tplErr)
		}

		req.Instructions = rendered
	} else {
		req.Instructions = instructions
	}

	return nil
}

// ContentsProcessor assembles the request contents: the system prompt
// followed by the session's conversation history, trimmed to the agent's
// history window.
type ContentsProcessor struct{}

func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

func (p *ContentsProcessor) Name() string { return "contents" }

func (p *ContentsProcessor) ProcessRequest(rc *core.RunContext, req *model.Request, agent FlowAgent) error {
	contents := []core.Content{{
		Role:  "system",
		Parts: []core.Part{core.TextPart{Text: req.Instructions}},
	}}

	if rc.Session != nil {
		events := rc.Session.GetConversationHistory()
		if len(events) > agent.MaxHistoryMessages() {
			events = events[len(events)-agent.MaxHistoryMessages():]
		}

		for _, ev := range events {
			if ev.Content != nil && len(ev.Content.Parts) > 0 {
				contents = append(contents, *ev.Content)
			}
		}
	}

	req.Contents = contents

	return nil
}
