package run

import (
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/failcore/runtime/runtime/sideeffect"
)

// Options configures one Open call. Every field is optional; a zero
// Options opens the most permissive run a caller can ask for (every
// guard disabled, fresh policy, no replay), matching the "zero cost
// when disabled" posture the rest of the collaborators document for
// themselves.
//
// Grounded on spec.md §3 "Run Context": "holds ... optional break-glass
// token, optional side-effect boundary, optional semantic guard,
// optional taint/DLP, optional replay engine".
type Options struct {
	// RunID overrides the generated run id. Leave empty to have Open
	// assign a fresh one via runtime/ids.NewRunID.
	RunID string

	// PolicyPath, ShadowPolicyPath, BreakglassPolicyPath load a layered
	// policy document via runtime/policy.LoadLayered. All empty means
	// an empty, permissive policy (policy.New()).
	PolicyPath           string
	ShadowPolicyPath     string
	BreakglassPolicyPath string

	// StrictMode short-circuits the validation engine on the first
	// remaining BLOCK. Defaults to the process config's StrictMode if
	// unset here; see Open.
	StrictMode *bool

	// EnableSemanticGuard turns on the pre-execution intent inspector
	// with its documented default posture (min severity HIGH, block on
	// violation).
	EnableSemanticGuard bool

	// EnableTaint turns on the taint/DLP engine and wires it into the
	// pipeline's Dispatch/Observe stage.
	EnableTaint bool

	// SideEffectBoundary, if non-nil, enables the Side-Effect Boundary
	// Check stage with this allow-list.
	SideEffectBoundary *sideeffect.SideEffectBoundary

	// ReplayMode and ReplayTracePath enable the Replay Hook: a prior
	// run's trace is loaded and indexed by fingerprint before this run
	// starts. Leave ReplayTracePath empty to disable replay entirely.
	ReplayMode      string
	ReplayTracePath string

	// PostRunDrift runs the drift engine's post-run validator against
	// this run's own trace on Close, surfacing inflection points via
	// Decisions.
	PostRunDrift bool

	// Tags are attached to every trace event's RunInfo.
	Tags []string

	// Workspace is the logical workspace path recorded on every trace
	// event. Defaults to the sandbox root if empty.
	Workspace string

	// Redis, if non-nil and EnableTaint is set, backs the taint engine
	// with a redisstore.Store sharing this client instead of the
	// default in-process MemStore, so several executor instances
	// sharing one Redis deployment observe the same taint state. The
	// caller owns the client's lifecycle; Open never closes it.
	Redis          *redis.Client
	RedisKeyPrefix string

	// Mongo, if non-nil, adds a queryable secondary trace sink
	// alongside the canonical FileSink so a run's trace can be queried
	// by run id without re-parsing JSONL. MongoDatabase and
	// MongoCollection name the target collection; both fall back to
	// documented defaults when empty. The caller owns the client's
	// lifecycle; Open never closes it.
	Mongo           *mongo.Client
	MongoDatabase   string
	MongoCollection string
}
