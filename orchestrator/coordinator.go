package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coderlang-ai/coderlang/agent"
	"github.com/coderlang-ai/coderlang/cache"
	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/logging"
	"github.com/coderlang-ai/coderlang/model"
	"github.com/coderlang-ai/coderlang/observability"
)

// Workflow stages. Run advances through them in order, persisting the
// current stage into session state after every step so a fresh Run on the
// same session resumes where the previous one stopped.
const (
	StageInit     = "INIT"
	StagePlanned  = "PLANNED"
	StageOne      = "STAGE1"
	StageTwo      = "STAGE2"
	StageComplete = "COMPLETE"
)

// Session state keys owned by the coordinator.
const (
	StateKeyStage   = "coordinator.stage"
	StateKeyPlan    = "coordinator.plan"
	StateKeyResults = "coordinator.results"
	StateKeyLogs    = "coordinator.logs"
	StateKeyStart   = "coordinator.start_time"
	StateKeySummary = "coordinator.summary"
)

// ContextProvider supplies persistent memory context to prepend to worker
// inputs. memory.FileStore satisfies it.
type ContextProvider interface {
	Context(sessionID string) string
}

// Options configures a Coordinator.
type Options struct {
	Name     string
	Cache    cache.Cache
	CacheTTL time.Duration
	Tracers  *observability.TracerRegistry
	Metrics  *observability.Metrics
	Memory   ContextProvider
	Logger   logging.Logger
}

// Coordinator is the root agent of the coding workflow. It plans with the
// fast model, runs creation workers (code generation on the smart model),
// derives tests, docs, safety and translation from generated code, scores
// the result and emits a structured summary event.
type Coordinator struct {
	agent.BaseAgent
	fast     model.Model
	smart    model.Model
	cache    cache.Cache
	cacheTTL time.Duration
	tracers  *observability.TracerRegistry
	metrics  *observability.Metrics
	memory   ContextProvider
	logger   logging.Logger
}

// NewCoordinator constructs a Coordinator over a fast and a smart model tier.
func NewCoordinator(fast, smart model.Model, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		Name:     "coordinator",
		CacheTTL: time.Hour,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Tracers == nil {
		opts.Tracers = observability.NewTracerRegistry(0)
	}

	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}

	c := &Coordinator{
		BaseAgent: agent.NewBaseAgent(opts.Name),
		fast:      fast,
		smart:     smart,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		tracers:   opts.Tracers,
		metrics:   opts.Metrics,
		memory:    opts.Memory,
		logger:    opts.Logger,
	}
	c.SetDescription("Routes coding requests through staged specialist workers")

	return c
}

// Tracers exposes the trace registry for inspection (HTTP trace endpoint).
func (c *Coordinator) Tracers() *observability.TracerRegistry { return c.tracers }

// Metrics exposes the shared request metrics.
func (c *Coordinator) Metrics() *observability.Metrics { return c.metrics }

// runState is the coordinator's working view of one workflow. It is loaded
// from session state at Run start and flushed back out through event deltas
// after every stage transition.
type runState struct {
	Stage   string
	Plan    *Plan
	Results map[string]workerResult
	Logs    []string
	Start   time.Time
}

// Run advances the workflow from its persisted stage to COMPLETE, emitting a
// progress event after every stage transition and a final summary event with
// TurnComplete set.
func (c *Coordinator) Run(rc *core.RunContext) error {
	prompt := promptText(rc.UserContent)
	if prompt == "" {
		return fmt.Errorf("empty user prompt")
	}

	input := prompt
	if c.memory != nil {
		if mem := c.memory.Context(rc.SessionID); mem != "" {
			input = mem + "\n\n" + prompt
		}
	}

	st, err := c.loadRunState(rc)
	if err != nil {
		return err
	}

	tracer := c.tracers.Tracer(rc.RunID)
	tracer.Record("user", c.Name(), "request", map[string]any{"status": "OK"})

	c.logger.Debug("coordinator.run.start", "session_id", rc.SessionID, "run_id", rc.RunID, "stage", st.Stage)

	for {
		var msg string

		switch st.Stage {
		case StageInit:
			msg = c.route(rc, tracer, st, input)
		case StagePlanned:
			msg = c.runCreation(rc, tracer, st, input)
		case StageOne:
			msg = c.runDerivatives(rc, tracer, st, prompt)
		case StageTwo:
			msg = c.runEvaluation(rc, tracer, st, prompt)
		case StageComplete:
			return c.finalize(rc, tracer, st)
		default:
			err = fmt.Errorf("unknown workflow stage %q", st.Stage)
		}

		if err != nil {
			c.metrics.RecordRequest(time.Since(st.Start), false)
			tracer.Record(c.Name(), "user", "failed", map[string]any{"error": err.Error()})

			return err
		}

		if err := c.emitProgress(rc, st, msg); err != nil {
			return err
		}
	}
}

// route asks the fast model for an execution plan.
func (c *Coordinator) route(rc *core.RunContext, tracer *observability.Tracer, st *runState, input string) string {
	c.appendLog(st, rc, "Routing request")

	res := c.callWorker(rc, tracer, workerTask{role: RoleRouter, llm: c.fast, input: input})

	if res.OK {
		st.Plan = ParsePlan(res.Text)
	} else {
		c.appendLog(st, rc, "Router unavailable, falling back to general chat")
		st.Plan = FallbackPlan()
	}

	st.Stage = StagePlanned
	c.appendLog(st, rc, fmt.Sprintf("Plan: %v", st.Plan.AgentsToRun))

	return "Plan ready: " + strings.Join(st.Plan.AgentsToRun, ", ")
}

// runCreation fans out stage-1 workers over the user request. General chat is
// suppressed when code generation is active; code generation runs on the
// smart tier.
func (c *Coordinator) runCreation(rc *core.RunContext, tracer *observability.Tracer, st *runState, input string) string {
	c.appendLog(st, rc, "Starting creation stage")

	var tasks []workerTask

	if st.Plan.Has(RoleResearch) {
		tasks = append(tasks, workerTask{role: RoleResearch, llm: c.fast, input: input})
	}

	if st.Plan.Has(RoleGeneral) && !st.Plan.Has(RoleCodeGen) {
		tasks = append(tasks, workerTask{role: RoleGeneral, llm: c.fast, input: input})
	}

	if st.Plan.Has(RoleCodeGen) {
		tasks = append(tasks, workerTask{role: RoleCodeGen, llm: c.smart, input: input})
	}

	if st.Plan.Has(RoleExplain) {
		tasks = append(tasks, workerTask{role: RoleExplain, llm: c.fast, input: input})
	}

	c.runBatch(rc, tracer, tasks, st.Plan.Parallelizable, st.Results)

	st.Stage = StageOne
	c.appendLog(st, rc, "Creation stage complete")

	return fmt.Sprintf("Creation stage complete (%d workers)", len(tasks))
}

// runDerivatives runs stage-2 workers over the generated code. The stage is
// skipped entirely when no code was produced.
func (c *Coordinator) runDerivatives(rc *core.RunContext, tracer *observability.Tracer, st *runState, prompt string) string {
	code := st.Results[RoleCodeGen].Text
	if code == "" {
		st.Stage = StageTwo
		c.appendLog(st, rc, "No code generated, skipping derivative stage")

		return "No code generated, derivative stage skipped"
	}

	c.appendLog(st, rc, "Starting derivative stage")

	input := fmt.Sprintf("Original Request: %s\n\nCode:\n%s", prompt, code)

	var tasks []workerTask

	for _, role := range []string{RoleSafety, RoleTestGen, RoleDocstring, RoleTranslate} {
		if st.Plan.Has(role) {
			tasks = append(tasks, workerTask{role: role, llm: c.fast, input: input})
		}
	}

	c.runBatch(rc, tracer, tasks, st.Plan.Parallelizable, st.Results)

	st.Stage = StageTwo
	c.appendLog(st, rc, "Derivative stage complete")

	return fmt.Sprintf("Derivative stage complete (%d workers)", len(tasks))
}

// runEvaluation scores the final code against the request and tests.
func (c *Coordinator) runEvaluation(rc *core.RunContext, tracer *observability.Tracer, st *runState, prompt string) string {
	code := st.Results[RoleDocstring].Text
	if code == "" {
		code = st.Results[RoleCodeGen].Text
	}

	msg := "Evaluation skipped"

	if st.Plan.Has(RoleEvaluator) && code != "" {
		c.appendLog(st, rc, "Starting evaluation stage")

		input := fmt.Sprintf("Req: %s\nCode: %s\nTests: %s", prompt, code, st.Results[RoleTestGen].Text)
		st.Results[RoleEvaluator] = c.callWorker(rc, tracer, workerTask{role: RoleEvaluator, llm: c.fast, input: input})

		msg = "Evaluation complete"
	}

	st.Stage = StageComplete
	c.appendLog(st, rc, "Workflow complete")

	return msg
}

// finalize assembles the summary, persists it and emits the terminal event.
func (c *Coordinator) finalize(rc *core.RunContext, tracer *observability.Tracer, st *runState) error {
	elapsed := time.Since(st.Start)
	summary := buildSummary(st.Plan, st.Results, st.Logs, elapsed, StageComplete)

	var data map[string]any
	if err := reencode(summary, &data); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	rc.SetState(StateKeySummary, data)

	c.metrics.RecordRequest(elapsed, true)
	tracer.Record(c.Name(), "user", "summary", map[string]any{"status": "OK", "latency": summary.Latency})

	ev := core.NewEvent(rc.RunID, c.Name())
	ev.Content = &core.Content{
		Role: "assistant",
		Parts: []core.Part{
			core.TextPart{Text: summary.PrimaryText()},
			core.DataPart{Data: data},
		},
	}

	partial := false
	turnComplete := true
	ev.Partial = &partial
	ev.TurnComplete = &turnComplete

	if err := rc.EmitEvent(ev); err != nil {
		return err
	}

	return rc.WaitForResume()
}

// emitProgress stages the full run state as a delta and sends a non-final
// status event carrying it.
func (c *Coordinator) emitProgress(rc *core.RunContext, st *runState, message string) error {
	if err := c.stageDelta(rc, st); err != nil {
		return err
	}

	ev := core.NewEvent(rc.RunID, c.Name())
	ev.Content = &core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: message}}}

	partial := false
	turnComplete := false
	ev.Partial = &partial
	ev.TurnComplete = &turnComplete

	if err := rc.EmitEvent(ev); err != nil {
		return err
	}

	return rc.WaitForResume()
}

// stageDelta stages the whole run state. Values pass through JSON so
// in-memory and durable session stores observe the same representation.
func (c *Coordinator) stageDelta(rc *core.RunContext, st *runState) error {
	rc.SetState(StateKeyStage, st.Stage)
	rc.SetState(StateKeyLogs, st.Logs)
	rc.SetState(StateKeyStart, st.Start.Unix())

	var plan map[string]any
	if err := reencode(st.Plan, &plan); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	rc.SetState(StateKeyPlan, plan)

	var results map[string]any
	if err := reencode(st.Results, &results); err != nil {
		return fmt.Errorf("failed to encode worker results: %w", err)
	}

	rc.SetState(StateKeyResults, results)

	return nil
}

// loadRunState restores a persisted workflow or starts a fresh one.
func (c *Coordinator) loadRunState(rc *core.RunContext) (*runState, error) {
	st := &runState{
		Stage:   StageInit,
		Plan:    FallbackPlan(),
		Results: map[string]workerResult{},
		Start:   time.Now(),
	}

	if v, ok := rc.GetState(StateKeyStage); ok {
		if s, ok := v.(string); ok && s != "" {
			st.Stage = s
		}
	}

	if v, ok := rc.GetState(StateKeyPlan); ok {
		var plan Plan
		if err := reencode(v, &plan); err != nil {
			return nil, fmt.Errorf("failed to decode plan: %w", err)
		}

		st.Plan = &plan
	}

	if v, ok := rc.GetState(StateKeyResults); ok {
		if err := reencode(v, &st.Results); err != nil {
			return nil, fmt.Errorf("failed to decode worker results: %w", err)
		}
	}

	if v, ok := rc.GetState(StateKeyLogs); ok {
		if err := reencode(v, &st.Logs); err != nil {
			return nil, fmt.Errorf("failed to decode workflow logs: %w", err)
		}
	}

	if v, ok := rc.GetState(StateKeyStart); ok {
		switch n := v.(type) {
		case float64:
			st.Start = time.Unix(int64(n), 0)
		case int64:
			st.Start = time.Unix(n, 0)
		case int:
			st.Start = time.Unix(int64(n), 0)
		}
	}

	return st, nil
}

func (c *Coordinator) appendLog(st *runState, rc *core.RunContext, message string) {
	st.Logs = append(st.Logs, fmt.Sprintf("%s - %s", time.Now().Format("15:04:05"), message))
	rc.LogInfo("coordinator.step", "stage", st.Stage, "message", message)
}

func reencode(src, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

func promptText(content core.Content) string {
	var sb strings.Builder

	for _, p := range content.Parts {
		if tp, ok := p.(core.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}

	return strings.TrimSpace(sb.String())
}
