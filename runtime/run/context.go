// Package run implements the Run Context (§3, §9): the top-level scope
// that composes every collaborator — tool registry, validator registry
// and policy, side-effect gate, semantic guard, taint engine, replay
// engine, and trace writer — assigns a run id, a sandbox root, and a
// trace path under the configured runs directory, and owns all of it
// exclusively for the run's lifetime. Release flushes the trace and
// runs any configured post-run analyses.
//
// Grounded on spec.md §3's "Run Context" data model entry and §9
// "Shared resources" (the `.failcore/runs/<run_id>/` layout), and on
// the teacher's own scoped-acquisition style for composing a pipeline
// out of independently constructible collaborators
// (runtime/pipeline.New wiring Tools/Trace and leaving the rest nil).
package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/failcore/runtime/runtime/config"
	"github.com/failcore/runtime/runtime/ids"
	"github.com/failcore/runtime/runtime/pipeline"
	"github.com/failcore/runtime/runtime/policy"
	"github.com/failcore/runtime/runtime/proxy"
	"github.com/failcore/runtime/runtime/replay"
	"github.com/failcore/runtime/runtime/semantic"
	"github.com/failcore/runtime/runtime/sideeffect"
	"github.com/failcore/runtime/runtime/taint"
	"github.com/failcore/runtime/runtime/taint/redisstore"
	"github.com/failcore/runtime/runtime/telemetry"
	"github.com/failcore/runtime/runtime/trace"
	"github.com/failcore/runtime/runtime/trace/mongosink"
	"github.com/failcore/runtime/runtime/validate"
	"github.com/failcore/runtime/runtime/validate/builtin"
)

const (
	defaultMongoDatabase   = "failcore"
	defaultMongoCollection = "trace_events"
)

// Context is one run's process-wide state: every collaborator the
// pipeline needs, scoped to this run's lifetime and released together.
type Context struct {
	RunID       string
	CreatedAt   time.Time
	SandboxRoot string
	TracePath   string

	Tools      *pipeline.ToolRegistry
	Pipeline   *pipeline.Pipeline
	Policy     *policy.Policy
	Validators *validate.Registry
	Engine     *validate.Engine
	Taint      *taint.Engine
	Replayer   *replay.Engine
	Trace      *trace.Writer
	Egress     *proxy.EgressEngine

	logger telemetry.Logger
	sink   *trace.FileSink
	opts   Options
	cfg    config.Runtime
}

// Open acquires a new Context: it assigns a run id, creates the
// sandbox and trace directories under cfg.RunsDir(), loads policy,
// builds every optional collaborator Options enables, and wires them
// into a fresh Pipeline. tools must not be nil; every other
// collaborator is built according to opts.
func Open(cfg config.Runtime, tools *pipeline.ToolRegistry, logger telemetry.Logger, opts Options) (*Context, error) {
	if tools == nil {
		return nil, fmt.Errorf("run: tools registry must not be nil")
	}
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}

	runID := opts.RunID
	if runID == "" {
		runID = string(ids.NewRunID())
	}
	createdAt := time.Now().UTC()

	runDir := filepath.Join(cfg.RunsDir(), runID)
	sandboxRoot := filepath.Join(runDir, "sandbox")
	tracePath := filepath.Join(runDir, "trace.jsonl")
	workspace := opts.Workspace
	if workspace == "" {
		workspace = sandboxRoot
	}

	if err := os.MkdirAll(sandboxRoot, 0o755); err != nil {
		return nil, fmt.Errorf("run: create sandbox: %w", err)
	}

	sink, err := trace.NewFileSink(tracePath)
	if err != nil {
		return nil, fmt.Errorf("run: open trace sink: %w", err)
	}

	var secondary []trace.Sink
	if opts.Mongo != nil {
		database := opts.MongoDatabase
		if database == "" {
			database = defaultMongoDatabase
		}
		collection := opts.MongoCollection
		if collection == "" {
			collection = defaultMongoCollection
		}
		secondary = append(secondary, mongosink.New(opts.Mongo.Database(database).Collection(collection)))
	}

	tc := trace.NewContext(runID, createdAt, sandboxRoot, workspace, opts.Tags...)
	writer := trace.NewWriter(tc, sink, logger, secondary...)

	pol, err := loadPolicy(opts)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}

	registry := builtin.Default()

	strict := cfg.StrictMode
	if opts.StrictMode != nil {
		strict = *opts.StrictMode
	}
	engine := validate.NewEngine(pol, registry, strict)

	rc := &Context{
		RunID:       runID,
		CreatedAt:   createdAt,
		SandboxRoot: sandboxRoot,
		TracePath:   tracePath,
		Tools:       tools,
		Policy:      pol,
		Validators:  registry,
		Engine:      engine,
		Trace:       writer,
		logger:      logger,
		sink:        sink,
		opts:        opts,
		cfg:         cfg,
	}

	p := pipeline.New(tools, writer, logger)
	p.Validators = engine
	p.Config.SummarizeLimit = cfg.SummarizeLimit
	if p.Config.SummarizeLimit <= 0 {
		p.Config = pipeline.DefaultConfig()
	}

	if opts.EnableTaint {
		rc.Taint = taint.NewEngine(logger)
		if opts.Redis != nil {
			rc.Taint.Store = redisstore.New(opts.Redis, opts.RedisKeyPrefix)
		}
		p.Taint = rc.Taint
	}
	if opts.EnableSemanticGuard {
		p.SemanticGuard = semantic.NewGuard(logger)
	}
	if opts.SideEffectBoundary != nil {
		p.SideEffectGate = sideeffect.NewSideEffectBoundaryGate(opts.SideEffectBoundary)
	}
	if opts.ReplayTracePath != "" {
		mode := replay.Mode(opts.ReplayMode)
		if mode == "" {
			mode = replay.ModeReport
		}
		replayer, err := replay.NewEngine(mode, opts.ReplayTracePath)
		if err != nil {
			_ = sink.Close()
			return nil, fmt.Errorf("run: load replay trace: %w", err)
		}
		rc.Replayer = replayer
		p.Replayer = replayer
	}

	rc.Pipeline = p
	rc.Egress = proxy.NewEgressEngine(writer, logger)

	return rc, nil
}

func loadPolicy(opts Options) (*policy.Policy, error) {
	if opts.PolicyPath == "" {
		return policy.New(), nil
	}
	pol, err := policy.LoadLayered(opts.PolicyPath, opts.ShadowPolicyPath, opts.BreakglassPolicyPath)
	if err != nil {
		return nil, fmt.Errorf("run: load policy: %w", err)
	}
	return pol, nil
}

// Execute runs step through this run's Pipeline.
func (c *Context) Execute(ctx context.Context, step pipeline.Step) pipeline.StepResult {
	return c.Pipeline.Execute(ctx, step)
}

// Close flushes the trace, runs any configured post-run analyses, and
// releases every collaborator. It is safe to call exactly once; a
// second call is a programming error the same way double-closing a
// file is.
func (c *Context) Close(ctx context.Context) (*PostRunReport, error) {
	c.Trace.Flush(ctx)

	report, err := c.runPostRunAnalyses(ctx)

	c.Trace.Close(ctx)
	return report, err
}

// PostRunReport holds the output of every post-run analysis Options
// enabled.
type PostRunReport struct {
	DriftDecisions []validate.Decision
}

func (c *Context) runPostRunAnalyses(ctx context.Context) (*PostRunReport, error) {
	report := &PostRunReport{}
	if !c.opts.PostRunDrift {
		return report, nil
	}

	events, err := trace.ReadAll(c.TracePath)
	if err != nil {
		return report, fmt.Errorf("run: read trace for post-run analysis: %w", err)
	}

	driftValidator := builtin.PostRunDriftValidator{}
	vctx := validate.Context{Metadata: map[string]any{"trace_events": events}}
	report.DriftDecisions = driftValidator.Evaluate(vctx, c.Policy.GetValidatorConfig(driftValidator.ID()))
	return report, nil
}
