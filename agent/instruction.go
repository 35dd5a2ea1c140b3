package agent

import "github.com/coderlang-ai/coderlang/core"

// Provider produces instruction text at run time, for prompts derived from
// session state or environment.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func adapts a plain function to the Provider interface.
type Func func(*core.RunContext) (string, error)

func (f Func) Instruction(ic *core.RunContext) (string, error) { return f(ic) }

// Instruction is either a fixed string or a dynamic provider, resolved into
// the system prompt when a run starts.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText wraps a fixed prompt string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider wraps a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc wraps a function as a dynamic provider.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic reports whether the instruction is a fixed string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the prompt text, calling the provider when dynamic.
func (i Instruction) Resolve(ctx *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx)
	}

	return i.text, nil
}
