package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawPolicy mirrors Policy but keys Validators by id before IDs are copied
// onto each ValidatorConfig, letting the decode populate ID automatically.
type rawPolicy struct {
	Version        string                      `yaml:"version" json:"version"`
	Validators     map[string]*ValidatorConfig `yaml:"validators" json:"validators"`
	GlobalOverride GlobalOverride              `yaml:"global_override" json:"global_override"`
	Metadata       map[string]any              `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Load reads a policy document from path. YAML and JSON are both accepted
// (JSON is a YAML subset): every file is decoded with the YAML decoder,
// whatever its extension.
func Load(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a policy document from raw YAML or JSON bytes.
func Parse(raw []byte) (*Policy, error) {
	var rp rawPolicy
	if err := yaml.Unmarshal(raw, &rp); err != nil {
		return nil, fmt.Errorf("policy: decode: %w", err)
	}
	if rp.Version == "" {
		rp.Version = "v1"
	}
	if rp.Validators == nil {
		rp.Validators = map[string]*ValidatorConfig{}
	}
	for id, cfg := range rp.Validators {
		if cfg == nil {
			delete(rp.Validators, id)
			continue
		}
		cfg.ID = id
		if cfg.Enforcement == "" {
			cfg.Enforcement = Block
		}
		if cfg.Priority == 0 {
			cfg.Priority = 100
		}
	}
	if rp.GlobalOverride.TokenEnvVar == "" {
		rp.GlobalOverride.TokenEnvVar = "FAILCORE_OVERRIDE_TOKEN"
	}
	return &Policy{
		Version:        rp.Version,
		Validators:     rp.Validators,
		GlobalOverride: rp.GlobalOverride,
		Metadata:       rp.Metadata,
	}, nil
}

// LoadLayered merges an active policy with an optional shadow policy and an
// optional break-glass overlay. Precedence follows the runtime's documented
// three-layer merge:
//   - enforcement mode: shadow's value wins when the validator is present
//     in shadow, otherwise active's value is kept;
//   - allow_override: breakglass's value wins when the validator is present
//     in breakglass;
//   - exceptions: concatenated across all three layers;
//   - global_override: taken from breakglass if breakglass enables it,
//     otherwise from active.
//
// shadowPath and breakglassPath may be empty to skip that layer.
func LoadLayered(activePath, shadowPath, breakglassPath string) (*Policy, error) {
	active, err := Load(activePath)
	if err != nil {
		return nil, err
	}

	var shadow, breakglass *Policy
	if shadowPath != "" {
		shadow, err = loadOptional(shadowPath)
		if err != nil {
			return nil, err
		}
	}
	if breakglassPath != "" {
		breakglass, err = loadOptional(breakglassPath)
		if err != nil {
			return nil, err
		}
	}
	return Merge(active, shadow, breakglass), nil
}

func loadOptional(path string) (*Policy, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return Load(path)
}

// Merge combines active with optional shadow and breakglass overlays per
// the rules documented on LoadLayered. active must not be nil.
func Merge(active, shadow, breakglass *Policy) *Policy {
	merged := &Policy{
		Version:        active.Version,
		Validators:     map[string]*ValidatorConfig{},
		GlobalOverride: active.GlobalOverride,
		Metadata:       active.Metadata,
	}
	for id, cfg := range active.Validators {
		c := *cfg
		merged.Validators[id] = &c
	}

	if shadow != nil {
		for id, scfg := range shadow.Validators {
			cur, ok := merged.Validators[id]
			if !ok {
				c := *scfg
				merged.Validators[id] = &c
				continue
			}
			cur.Enforcement = scfg.Enforcement
			cur.Exceptions = append(cur.Exceptions, scfg.Exceptions...)
		}
	}

	if breakglass != nil {
		for id, bcfg := range breakglass.Validators {
			cur, ok := merged.Validators[id]
			if !ok {
				c := *bcfg
				merged.Validators[id] = &c
				continue
			}
			cur.AllowOverride = bcfg.AllowOverride
			cur.Exceptions = append(cur.Exceptions, bcfg.Exceptions...)
		}
		if breakglass.GlobalOverride.Enabled {
			merged.GlobalOverride = breakglass.GlobalOverride
		}
	}

	return merged
}

// GetValidatorConfig returns the configuration for id, or nil.
func (p *Policy) GetValidatorConfig(id string) *ValidatorConfig {
	return p.Get(id)
}

// GetEnabledValidators returns every enabled validator config, sorted by
// ascending priority (lower runs first) then by id for determinism.
func (p *Policy) GetEnabledValidators() []*ValidatorConfig {
	var out []*ValidatorConfig
	for _, cfg := range p.Validators {
		if cfg != nil && cfg.Enabled {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetValidatorsByDomain returns enabled validators whose domain equals
// domain (case-insensitive), sorted as GetEnabledValidators.
func (p *Policy) GetValidatorsByDomain(domain string) []*ValidatorConfig {
	var out []*ValidatorConfig
	for _, cfg := range p.GetEnabledValidators() {
		if strings.EqualFold(cfg.Domain, domain) {
			out = append(out, cfg)
		}
	}
	return out
}

// Save writes p as YAML to path, creating parent directories as needed.
// It is mainly used by tests and tooling that generate policy documents.
func Save(path string, p *Policy) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
