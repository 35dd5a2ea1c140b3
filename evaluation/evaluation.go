// Package evaluation scores generated code with a judge model and parses the
// verdict into a structured result.
package evaluation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/logging"
	"github.com/coderlang-ai/coderlang/model"
)

// Result is a parsed judge verdict.
type Result struct {
	Score         int    `json:"score"`
	Justification string `json:"justification"`
	Raw           string `json:"raw"`
}

// Evaluator scores a piece of generated code against the originating request.
type Evaluator interface {
	Evaluate(ctx context.Context, request, code string) (*Result, error)
}

const judgePrompt = `You are a Judge/Evaluator Agent.
Your sole purpose is to evaluate a piece of code based on a user request.

You must provide two things:
1. A score from 1 (terrible) to 10 (perfect).
2. A one-sentence justification for your score.

Format your response as:
Score: [Your Score]/10
Justification: [Your Justification]

---
User Request:
%s
---
Generated Code:
%s
---`

var (
	scoreRe         = regexp.MustCompile(`(?i)score:\s*(\d+)\s*/\s*10`)
	justificationRe = regexp.MustCompile(`(?i)justification:\s*(.+)`)
)

// ModelEvaluatorOptions configures a ModelEvaluator.
type ModelEvaluatorOptions struct {
	Logger logging.Logger
}

// ModelEvaluator runs the judge prompt against a model and parses the verdict.
type ModelEvaluator struct {
	llm    model.Model
	logger logging.Logger
}

// NewModelEvaluator creates an evaluator backed by the given model.
func NewModelEvaluator(llm model.Model, optFns ...func(o *ModelEvaluatorOptions)) *ModelEvaluator {
	opts := ModelEvaluatorOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &ModelEvaluator{llm: llm, logger: opts.Logger}
}

// Evaluate sends the judge prompt and parses the "Score: X/10" verdict. When
// the model replies in an unexpected shape the raw verdict is still returned
// with a zero score rather than an error.
func (e *ModelEvaluator) Evaluate(ctx context.Context, request, code string) (*Result, error) {
	prompt := fmt.Sprintf(judgePrompt, request, code)

	req := model.Request{
		Contents: []core.Content{*core.NewTextContent("user", prompt)},
	}

	respCh, errCh := e.llm.Generate(ctx, req)

	var verdict strings.Builder
	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				verdict.WriteString(resp.Content.Text())
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("judge model call failed: %w", err)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	result := ParseVerdict(verdict.String())
	e.logger.Info("evaluation.complete", "score", result.Score)
	return result, nil
}

// ParseVerdict extracts score and justification from the judge's reply.
// Unparseable verdicts keep the raw text with a zero score.
func ParseVerdict(verdict string) *Result {
	result := &Result{Raw: strings.TrimSpace(verdict)}

	if m := scoreRe.FindStringSubmatch(verdict); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil {
			result.Score = n
		}
	}
	if m := justificationRe.FindStringSubmatch(verdict); len(m) == 2 {
		result.Justification = strings.TrimSpace(m[1])
	}
	return result
}
