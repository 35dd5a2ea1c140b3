package orchestrator

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coderlang-ai/coderlang/cache"
	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/model"
	"github.com/coderlang-ai/coderlang/observability"
)

// workerResult captures the outcome of a single worker model call. It is
// persisted into session state, so the shape must survive a JSON round trip.
type workerResult struct {
	Text  string `json:"text"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// workerTask pairs a role with the model tier and input it should run on.
type workerTask struct {
	role  string
	llm   model.Model
	input string
}

// callWorker executes one worker role: cache lookup, model call, fence
// stripping, cache fill. Failures are folded into the result rather than
// returned, so one broken worker does not sink the whole stage.
func (c *Coordinator) callWorker(rc *core.RunContext, tracer *observability.Tracer, task workerTask) workerResult {
	start := time.Now()

	key := cache.Key(task.role, task.llm.Info().Name, task.input)
	if c.cache != nil {
		if text, err := c.cache.Get(rc.Context, key); err == nil {
			tracer.Record(c.Name(), task.role, "cache_hit", map[string]any{"status": "OK"})
			c.metrics.RecordAgentUsage(task.role)

			return workerResult{Text: text, OK: true}
		}
	}

	if err := rc.Limiter.Increment(); err != nil {
		return c.failWorker(tracer, task.role, err)
	}

	req := model.Request{
		Instructions: SystemPrompts[task.role],
		Contents: []core.Content{
			{Role: "user", Parts: []core.Part{core.TextPart{Text: task.input}}},
		},
	}

	text, err := drainCompletion(rc, task.llm, req)
	if err != nil {
		return c.failWorker(tracer, task.role, err)
	}

	text = StripFences(text)

	if c.cache != nil {
		if err := c.cache.Set(rc.Context, key, text, c.cacheTTL); err != nil {
			rc.LogWarn("orchestrator.cache.set_failed", "role", task.role, "error", err)
		}
	}

	c.metrics.RecordAgentUsage(task.role)
	tracer.Record(c.Name(), task.role, "model_call", map[string]any{
		"status":     "OK",
		"model":      task.llm.Info().Name,
		"latency_ms": time.Since(start).Milliseconds(),
	})

	return workerResult{Text: text, OK: true}
}

func (c *Coordinator) failWorker(tracer *observability.Tracer, role string, err error) workerResult {
	tracer.Record(c.Name(), role, "model_call", map[string]any{"error": err.Error()})

	return workerResult{OK: false, Error: err.Error()}
}

// runBatch executes a set of worker tasks, concurrently when the plan allows
// it, and merges their results into the given map keyed by role.
func (c *Coordinator) runBatch(rc *core.RunContext, tracer *observability.Tracer, tasks []workerTask, parallel bool, results map[string]workerResult) {
	if len(tasks) == 0 {
		return
	}

	if !parallel {
		for _, t := range tasks {
			results[t.role] = c.callWorker(rc, tracer, t)
		}

		return
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, t := range tasks {
		wg.Add(1)

		go func(t workerTask) {
			defer wg.Done()

			res := c.callWorker(rc, tracer, t)

			mu.Lock()
			results[t.role] = res
			mu.Unlock()
		}(t)
	}

	wg.Wait()
}

// drainCompletion consumes a Generate stream and concatenates the text parts
// of all non-partial responses.
func drainCompletion(rc *core.RunContext, llm model.Model, req model.Request) (string, error) {
	respCh, errCh := llm.Generate(rc.Context, req)

	var sb strings.Builder

	for respCh != nil || errCh != nil {
		select {
		case <-rc.Done():
			return "", rc.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if resp.Partial {
				continue
			}

			for _, p := range resp.Content.Parts {
				if tp, ok := p.(core.TextPart); ok {
					sb.WriteString(tp.Text)
				}
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if err != nil {
				return "", fmt.Errorf("model generation failed: %w", err)
			}
		}
	}

	return sb.String(), nil
}
