package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/failcore/runtime/runtime/pipeline/executor"
	"github.com/failcore/runtime/runtime/semantic"
	"github.com/failcore/runtime/runtime/sideeffect"
	"github.com/failcore/runtime/runtime/taint"
	"github.com/failcore/runtime/runtime/telemetry"
	"github.com/failcore/runtime/runtime/trace"
	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/codes"
)

// Replayer is the Replay Hook's dependency (stage 5). It is defined here,
// not imported from runtime/replay, so that runtime/replay can itself
// depend on runtime/pipeline's StepOutput/StepResult types without an
// import cycle; runtime/replay.Engine satisfies this interface.
type Replayer interface {
	// Mode reports the configured replay mode: "report", "mock", or
	// "resume".
	Mode() string
	// TracePath names the historical trace this replayer indexes, for
	// REPLAY_STEP_HIT evidence.
	TracePath() string
	// ReplayStep attempts to replay one step by fingerprint. policyAllowed
	// and policyReason carry the current run's precondition-stage verdict
	// so a HIT can be compared against the historical decision.
	ReplayStep(stepID, tool string, params map[string]any, fingerprint string, policyAllowed bool, policyReason string) ReplayOutcome
}

// ReplayOutcome is a Replayer's verdict for one step.
type ReplayOutcome struct {
	HitType        string // "HIT" or "MISS"
	MatchedStepID  string
	PolicyDiff     *ReplayPolicyDiff
	InjectedOutput *StepOutput
	Message        string
}

// ReplayPolicyDiff compares the historical and current policy decisions
// for a replayed step, surfaced on REPLAY_POLICY_DIFF.
type ReplayPolicyDiff struct {
	HistoricalAllowed bool
	HistoricalReason  string
	CurrentAllowed    bool
	CurrentReason     string
}

// Config tunes cross-cutting pipeline behavior (§4.1 "Cross-cutting
// contracts").
type Config struct {
	// SummarizeLimit bounds error message length; longer messages are
	// truncated with a suffix noting the cut size.
	SummarizeLimit int
	// IncludeStack records a Go stack trace in StepError.Detail["stack"]
	// when a tool panics during Dispatch.
	IncludeStack bool
	// StrictOutputContract turns an Output Contract mismatch (stage 7)
	// into a BLOCKED result instead of a WARN trace event.
	StrictOutputContract bool
}

// DefaultConfig returns the pipeline's documented defaults.
func DefaultConfig() Config {
	return Config{SummarizeLimit: 200, IncludeStack: true}
}

// Pipeline runs a Step through the seven fixed-order stages and returns
// exactly one StepResult. Every collaborator is optional except Tools and
// Trace: a Pipeline with no Validators, SideEffectGate, SemanticGuard,
// Taint, or Replayer simply skips that stage, the same "zero cost when
// disabled" posture the Semantic Guard documents for itself.
type Pipeline struct {
	Tools          *ToolRegistry
	Validators     *validate.Engine
	SideEffectGate *sideeffect.SideEffectBoundaryGate
	SemanticGuard  *semantic.Guard
	Taint          *taint.Engine
	Replayer       Replayer
	Trace          *trace.Writer
	Executor       executor.Executor
	Config         Config
	Logger         telemetry.Logger

	mu       sync.Mutex
	attempts map[string]int
}

// New constructs a Pipeline. tools and traceWriter are required; every
// other collaborator may be left nil to disable that stage.
func New(tools *ToolRegistry, traceWriter *trace.Writer, logger telemetry.Logger) *Pipeline {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Pipeline{
		Tools:    tools,
		Trace:    traceWriter,
		Executor: executor.New(),
		Config:   DefaultConfig(),
		Logger:   logger,
		attempts: map[string]int{},
	}
}

// Execute runs step through every stage in fixed order and returns its
// terminal StepResult. It never panics the caller: a tool panic during
// Dispatch is recovered and reported as TOOL_RAISED.
func (p *Pipeline) Execute(ctx context.Context, step Step) (result StepResult) {
	startedAt := time.Now().UTC()
	t0 := time.Now()
	attempt := p.nextAttempt(step.ID)

	stepRef := &trace.StepRef{ID: step.ID, Tool: step.Tool, Attempt: attempt}
	p.emit(ctx, trace.LevelInfo, trace.EventStepStart, stepRef, map[string]any{
		"params": step.Params,
	})

	defer func() {
		if r := recover(); r != nil {
			var detail map[string]any
			if p.Config.IncludeStack {
				detail = map[string]any{"stack": string(debug.Stack())}
			}
			result = p.fail(step, attempt, startedAt, t0, codes.ToolRaised,
				fmt.Sprintf("panic: %v", r), PhaseExecute, detail)
		}
		p.emitStepEnd(ctx, stepRef, result)
	}()

	// Stage 1: Basic Validation.
	if ok, msg := validateBasic(step); !ok {
		p.emit(ctx, trace.LevelWarn, trace.EventValidationFailed, stepRef, map[string]any{"message": msg})
		return p.fail(step, attempt, startedAt, t0, codes.ParamInvalid, msg, PhaseValidate, nil)
	}

	// Stage 2: Precondition Validation.
	if p.Validators != nil {
		vctx := validate.Context{Tool: step.Tool, Params: step.Params, StepID: step.ID}
		decisions := p.Validators.Evaluate(vctx, nil)
		for _, d := range decisions {
			if d.IsBlocking() {
				p.emit(ctx, trace.LevelWarn, trace.EventPolicyDenied, stepRef, map[string]any{
					"code": d.Code, "validator": d.ValidatorID, "reason": d.Message, "evidence": d.Evidence,
				})
				return p.fail(step, attempt, startedAt, t0, d.Code, d.Message, PhaseValidate, d.Evidence)
			}
		}
	}

	// Stage 3: Side-Effect Boundary Check.
	if p.SideEffectGate != nil {
		allowed, decision, _ := p.SideEffectGate.Check(step.Tool, step.Params, step.ID)
		if !allowed {
			p.emit(ctx, trace.LevelWarn, trace.EventPolicyDenied, stepRef, map[string]any{
				"code": decision.Code, "validator": decision.ValidatorID, "reason": decision.Message, "evidence": decision.Evidence,
			})
			return p.fail(step, attempt, startedAt, t0, decision.Code, decision.Message, PhasePolicy, decision.Evidence)
		}
	}

	// Stage 4: Semantic Guard.
	if p.SemanticGuard != nil {
		verdict := p.SemanticGuard.Check(ctx, step.Tool, step.Params)
		if verdict.Blocked() {
			evidence := map[string]any{"violations": verdict.Violations, "explanation": verdict.Explanation}
			p.emit(ctx, trace.LevelWarn, trace.EventPolicyDenied, stepRef, map[string]any{
				"policy_id": "Semantic-Guard", "reason": verdict.Explanation, "evidence": evidence,
			})
			return p.fail(step, attempt, startedAt, t0, codes.SemanticViolation, verdict.Explanation, PhasePolicy, evidence)
		}
	}

	// Stage 5: Replay Hook.
	if p.Replayer != nil {
		if out, done := p.tryReplay(ctx, step, stepRef, attempt, startedAt, t0); done {
			return out
		}
	}

	// Stage 6: Dispatch.
	result = p.dispatch(ctx, step, stepRef, attempt, startedAt, t0)

	// Stage 7: Output Contract.
	if result.Status == StatusOK {
		p.checkOutputContract(ctx, step, stepRef, &result)
	}

	return result
}

func (p *Pipeline) nextAttempt(stepID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[stepID]++
	return p.attempts[stepID]
}

func (p *Pipeline) emit(ctx context.Context, level trace.Level, typ trace.EventType, step *trace.StepRef, data any) {
	if p.Trace == nil {
		return
	}
	p.Trace.Emit(ctx, level, typ, step, data)
}

func (p *Pipeline) emitStepEnd(ctx context.Context, step *trace.StepRef, result StepResult) {
	data := map[string]any{
		"status":      string(result.Status),
		"duration_ms": result.DurationMS,
	}
	if result.Output != nil {
		data["output"] = map[string]any{"kind": string(result.Output.Kind), "value": result.Output.Value}
	}
	if result.Error != nil {
		data["error"] = map[string]any{"code": result.Error.Code, "message": result.Error.Message, "detail": result.Error.Detail}
	}
	level := trace.LevelInfo
	if result.Status == StatusFail || result.Status == StatusBlocked {
		level = trace.LevelWarn
	}
	p.emit(ctx, level, trace.EventStepEnd, step, data)
}

// validateBasic mirrors the original executor's _validate_step: non-empty
// id/tool, params is a map, every key a non-empty string.
func validateBasic(step Step) (bool, string) {
	if strings.TrimSpace(step.ID) == "" {
		return false, "step.id is empty"
	}
	if strings.TrimSpace(step.Tool) == "" {
		return false, "step.tool is empty"
	}
	if step.Params == nil {
		return false, "step.params must be a map"
	}
	for k := range step.Params {
		if strings.TrimSpace(k) == "" {
			return false, "invalid param key: empty string"
		}
	}
	return true, ""
}

func (p *Pipeline) fail(step Step, attempt int, startedAt time.Time, t0 time.Time, code, message string, phase Phase, detail map[string]any) StepResult {
	finishedAt := time.Now().UTC()
	durationMS := time.Since(t0).Milliseconds()

	status := StatusFail
	if phase == PhaseValidate || phase == PhasePolicy {
		status = StatusBlocked
	}

	return StepResult{
		StepID:     step.ID,
		Tool:       step.Tool,
		Status:     status,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		DurationMS: durationMS,
		Error:      &StepError{Code: code, Message: p.truncate(message), Detail: detail},
		Meta:       map[string]any{"phase": string(phase), "attempt": attempt},
	}
}

func (p *Pipeline) truncate(s string) string {
	limit := p.Config.SummarizeLimit
	if limit <= 0 {
		limit = 200
	}
	if len(s) <= limit {
		return s
	}
	return fmt.Sprintf("%s...(+%d chars)", s[:limit], len(s)-limit)
}

// tryReplay implements stage 5. done reports whether the pipeline should
// return result immediately rather than proceed to Dispatch. Per §4.7,
// the tool is only ever actually executed when the replayer's mode is
// "resume" — in "report" and "mock" modes neither a HIT nor a MISS
// reaches Dispatch.
func (p *Pipeline) tryReplay(ctx context.Context, step Step, stepRef *trace.StepRef, attempt int, startedAt, t0 time.Time) (result StepResult, done bool) {
	fp := Fingerprint(step.Tool, step.Params)
	outcome := p.Replayer.ReplayStep(step.ID, step.Tool, step.Params, fp, true, "")
	mode := p.Replayer.Mode()

	if outcome.HitType == "HIT" {
		p.emit(ctx, trace.LevelInfo, trace.EventReplayStepHit, stepRef, map[string]any{
			"mode": mode, "fingerprint": fp, "matched_step_id": outcome.MatchedStepID,
			"source_trace": p.Replayer.TracePath(),
		})
		if outcome.PolicyDiff != nil {
			p.emit(ctx, trace.LevelWarn, trace.EventReplayPolicyDiff, stepRef, map[string]any{
				"historical_decision": outcome.PolicyDiff.HistoricalAllowed,
				"current_decision":    outcome.PolicyDiff.CurrentAllowed,
				"historical_reason":   outcome.PolicyDiff.HistoricalReason,
				"current_reason":      outcome.PolicyDiff.CurrentReason,
			})
		}

		switch mode {
		case "resume":
			return StepResult{}, false
		case "mock":
			if outcome.InjectedOutput != nil {
				p.emit(ctx, trace.LevelInfo, trace.EventReplayInjected, stepRef, map[string]any{
					"fingerprint": fp, "output_kind": string(outcome.InjectedOutput.Kind),
				})
				finishedAt := time.Now().UTC()
				return StepResult{
					StepID: step.ID, Tool: step.Tool, Status: StatusReplayed,
					StartedAt: startedAt, FinishedAt: finishedAt,
					DurationMS: time.Since(t0).Milliseconds(),
					Output:     outcome.InjectedOutput,
					Meta:       map[string]any{"phase": string(PhaseReplay), "attempt": attempt, "replay": true},
				}, true
			}
			fallthrough
		default: // "report", or "mock" with no recorded output
			return StepResult{
				StepID: step.ID, Tool: step.Tool, Status: StatusSkipped,
				StartedAt: startedAt, FinishedAt: time.Now().UTC(),
				DurationMS: time.Since(t0).Milliseconds(),
				Meta:       map[string]any{"phase": string(PhaseReplay), "attempt": attempt, "code": codes.ReplayReportMode},
			}, true
		}
	}

	// MISS.
	p.emit(ctx, trace.LevelWarn, trace.EventReplayStepMiss, stepRef, map[string]any{
		"mode": mode, "fingerprint": fp, "reason": outcome.Message,
	})
	if mode == "resume" {
		return StepResult{}, false
	}
	return p.fail(step, attempt, startedAt, t0, codes.ReplayMiss,
		fmt.Sprintf("replay miss: %s", outcome.Message), PhaseReplay, map[string]any{"fingerprint": fp}), true
}

// dispatch implements stage 6: tool lookup, invocation, output
// normalization, side-effect observation, and taint marking.
func (p *Pipeline) dispatch(ctx context.Context, step Step, stepRef *trace.StepRef, attempt int, startedAt, t0 time.Time) StepResult {
	fn := p.Tools.Get(step.Tool)
	if fn == nil {
		return p.fail(step, attempt, startedAt, t0, codes.ToolNotFound,
			fmt.Sprintf("tool not found: %s", step.Tool), PhaseExecute, nil)
	}

	raw, err := p.Executor.Execute(ctx, fn, step.Params)
	if err != nil {
		detail := map[string]any{}
		return p.fail(step, attempt, startedAt, t0, codes.ToolRaised, err.Error(), PhaseExecute, detail)
	}

	output := normalizeOutput(raw)
	p.observeSideEffects(ctx, step, stepRef)

	if p.Taint != nil && p.Taint.Store != nil {
		p.Taint.Observe(step.ID, step.Tool, step.Params, step.DependsOn, output.Value)
	}

	finishedAt := time.Now().UTC()
	return StepResult{
		StepID: step.ID, Tool: step.Tool, Status: StatusOK,
		StartedAt: startedAt, FinishedAt: finishedAt,
		DurationMS: time.Since(t0).Milliseconds(),
		Output:     &output,
		Meta:       map[string]any{"phase": string(PhaseExecute), "attempt": attempt},
	}
}

// observeSideEffects mirrors Dispatch's own post-execution probe: it
// tries all three filesystem operations, then network egress, then exec,
// independent of what the pre-execution gate predicted, and emits one
// SIDE_EFFECT_APPLIED event per detected effect.
func (p *Pipeline) observeSideEffects(ctx context.Context, step Step, stepRef *trace.StepRef) {
	probe := sideeffect.NewSideEffectProbe(func(event map[string]any) {
		data, _ := event["data"].(map[string]any)
		p.emit(ctx, trace.LevelInfo, trace.EventSideEffectApplied, stepRef, data)
	})

	for _, op := range []string{"read", "write", "delete"} {
		if t := sideeffect.DetectFilesystemSideEffect(step.Tool, step.Params, op); t != "" {
			probe.Record(t, fsTarget(step.Params), step.Tool, step.ID, nil)
		}
	}
	if t := sideeffect.DetectNetworkSideEffect(step.Tool, step.Params, "egress"); t != "" {
		probe.Record(t, netTarget(step.Params), step.Tool, step.ID, nil)
	}
	if t := sideeffect.DetectExecSideEffect(step.Tool, step.Params); t != "" {
		probe.Record(t, execTarget(step.Params), step.Tool, step.ID, nil)
	}
}

func fsTarget(params map[string]any) string   { return firstString(params, "path", "file", "filepath") }
func netTarget(params map[string]any) string  { return firstString(params, "url", "host", "hostname") }
func execTarget(params map[string]any) string { return firstString(params, "command", "cmd", "script") }

func firstString(params map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := params[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// checkOutputContract implements stage 7: compares observed kind against
// Step.ExpectedKind and emits OUTPUT_NORMALIZED on mismatch, or blocks
// the result when StrictOutputContract is set.
func (p *Pipeline) checkOutputContract(ctx context.Context, step Step, stepRef *trace.StepRef, result *StepResult) {
	if step.ExpectedKind == "" || result.Output == nil {
		return
	}
	if result.Output.Kind == step.ExpectedKind {
		return
	}

	reason := fmt.Sprintf("output kind mismatch: expected %s, got %s", step.ExpectedKind, result.Output.Kind)
	p.emit(ctx, trace.LevelWarn, trace.EventOutputNormalized, stepRef, map[string]any{
		"expected_kind": string(step.ExpectedKind),
		"observed_kind": string(result.Output.Kind),
		"reason":        reason,
	})

	if !p.Config.StrictOutputContract {
		return
	}

	result.Status = StatusBlocked
	result.Error = &StepError{
		Code:    codes.ContractTypeMismatch,
		Message: p.truncate(reason),
		Detail: map[string]any{
			"expected_kind": string(step.ExpectedKind),
			"observed_kind": string(result.Output.Kind),
		},
	}
	if result.Meta == nil {
		result.Meta = map[string]any{}
	}
	result.Meta["phase"] = string(PhaseContract)
}

// normalizeOutput converts a tool's raw return value into a StepOutput,
// mirroring the original executor's _normalize_output dispatch order.
func normalizeOutput(raw any) StepOutput {
	switch v := raw.(type) {
	case StepOutput:
		return v
	case *StepOutput:
		if v != nil {
			return *v
		}
		return StepOutput{Kind: KindUnknown, Value: nil}
	case nil:
		return StepOutput{Kind: KindUnknown, Value: nil}
	case bool, int, int64, float64:
		return StepOutput{Kind: KindJSON, Value: v}
	case []ArtifactRef:
		return StepOutput{Kind: KindArtifacts, Artifacts: v}
	case map[string]any:
		return StepOutput{Kind: KindJSON, Value: v}
	case []byte:
		return StepOutput{Kind: KindBytes, Value: fmt.Sprintf("<%d bytes>", len(v))}
	case string:
		return StepOutput{Kind: KindText, Value: v}
	default:
		return StepOutput{Kind: KindUnknown, Value: v}
	}
}
