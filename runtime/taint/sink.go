package taint

// SinkAction is the enforcement decision a sink policy applies once
// tainted data is found flowing into a high-risk sink.
type SinkAction string

const (
	ActionAllow           SinkAction = "allow"
	ActionBlock           SinkAction = "block"
	ActionSanitize        SinkAction = "sanitize"
	ActionRequireApproval SinkAction = "require_approval"
)

// DefaultHighRiskSinks is the hardcoded fallback sink list used when no
// explicit sink list is configured and require_explicit_sinks is false,
// matching the Python validator's default set exactly.
var DefaultHighRiskSinks = []string{
	"send_email",
	"http_post",
	"http_get",
	"upload_file",
	"publish_message",
	"log_external",
}

// SinkConfig controls which tools are treated as sinks and what action
// applies once tainted data is detected flowing into one.
type SinkConfig struct {
	HighRiskSinks        []string
	RequireExplicitSinks bool
	MinSensitivity       DataSensitivity
	// ActionBySensitivity maps a sensitivity level to the action taken
	// when data at or above that level reaches a sink; the highest
	// matching entry wins. A nil map falls back to the PolicyID/RuleID
	// default of BLOCK for confidential-and-above, mirroring the
	// DLP-Guard policy the integration tests exercise.
	ActionBySensitivity map[DataSensitivity]SinkAction
	PolicyID            string
	RuleID              string
}

// DefaultSinkConfig matches the shape the taint_flow validator and the
// DLP-Guard policy both assume when nothing overrides it.
func DefaultSinkConfig() SinkConfig {
	return SinkConfig{
		HighRiskSinks:        nil,
		RequireExplicitSinks: false,
		MinSensitivity:       SensitivityConfidential,
		ActionBySensitivity: map[DataSensitivity]SinkAction{
			SensitivityConfidential: ActionSanitize,
			SensitivityPII:          ActionBlock,
			SensitivitySecret:       ActionBlock,
		},
		PolicyID: "DLP-Guard",
		RuleID:   "DLP001",
	}
}

// IsHighRiskSink checks tool against cfg's sink configuration, in the
// same precedence order as the Python validator: an explicit list wins
// outright; require_explicit_sinks then gates out everything else;
// otherwise the store's registered sinks and the hardcoded default list
// both apply.
func IsHighRiskSink(tool string, cfg SinkConfig, store Store) bool {
	if len(cfg.HighRiskSinks) > 0 {
		return containsString(cfg.HighRiskSinks, tool)
	}
	if cfg.RequireExplicitSinks {
		return false
	}
	if store != nil && store.IsSinkTool(tool) {
		return true
	}
	return containsString(DefaultHighRiskSinks, tool)
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// actionForSensitivity picks the highest-ranked configured action whose
// threshold the given sensitivity meets or exceeds. Sensitivities below
// every configured threshold allow.
func actionForSensitivity(sensitivity DataSensitivity, cfg SinkConfig) SinkAction {
	if len(cfg.ActionBySensitivity) == 0 {
		if sensitivity.AtLeast(SensitivityConfidential) {
			return ActionBlock
		}
		return ActionAllow
	}
	best := ActionAllow
	bestRank := -1
	for threshold, action := range cfg.ActionBySensitivity {
		if sensitivity.AtLeast(threshold) && threshold.rank() > bestRank {
			best = action
			bestRank = threshold.rank()
		}
	}
	return best
}
