package sideeffect

import "sort"

// SideEffectBoundary is the allow-list an auditor checks predictions
// against. Allowed holds the individual SideEffectTypes a run may
// cross; AllowedCategories, if set, additionally allows every type in
// that category even if the type itself isn't listed explicitly. A
// type crosses the boundary when it is in neither set.
type SideEffectBoundary struct {
	Name              string
	Allowed           map[SideEffectType]bool
	AllowedCategories map[SideEffectCategory]bool
}

// Allows reports whether t is permitted by the boundary.
func (b *SideEffectBoundary) Allows(t SideEffectType) bool {
	if b == nil {
		return true // no boundary configured: unrestricted
	}
	if b.Allowed[t] {
		return true
	}
	return b.AllowedCategories[CategoryForType(t)]
}

// AllowedCategoryNames returns the sorted category names the boundary
// allows, used when reporting a crossing's allowed_categories.
func (b *SideEffectBoundary) AllowedCategoryNames() []string {
	if b == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for t := range b.Allowed {
		name := string(CategoryForType(t))
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for c := range b.AllowedCategories {
		name := string(c)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func newBoundary(name string, categories ...SideEffectCategory) *SideEffectBoundary {
	b := &SideEffectBoundary{
		Name:              name,
		Allowed:           map[SideEffectType]bool{},
		AllowedCategories: map[SideEffectCategory]bool{},
	}
	for _, c := range categories {
		b.AllowedCategories[c] = true
	}
	return b
}

// ReadOnlyBoundary permits filesystem and network reads but nothing
// that writes, deletes, or executes. It is the preset for a run that
// should only observe the world.
func ReadOnlyBoundary() *SideEffectBoundary {
	b := newBoundary("read_only")
	b.Allowed[FSRead] = true
	b.Allowed[NetEgress] = true
	b.Allowed[NetIngress] = true
	return b
}

// StrictBoundary permits nothing but a filesystem read — no network
// traffic of any kind and no process execution. It is the tightest
// preset, distinct from read_only in that it does not trust network
// egress either.
func StrictBoundary() *SideEffectBoundary {
	b := newBoundary("strict")
	b.Allowed[FSRead] = true
	return b
}

// PermissiveBoundary permits filesystem reads and writes plus network
// egress, but still blocks process execution — the preset for a run
// that is trusted to touch disk and the network but never to spawn a
// shell or subprocess.
func PermissiveBoundary() *SideEffectBoundary {
	b := newBoundary("permissive")
	b.Allowed[FSRead] = true
	b.Allowed[FSWrite] = true
	b.Allowed[NetEgress] = true
	return b
}

// UnrestrictedBoundary permits every known side effect. It exists so a
// caller can opt a run out of boundary checking explicitly rather than
// by leaving the boundary nil, which also means unrestricted but reads
// less intentionally at a call site.
func UnrestrictedBoundary() *SideEffectBoundary {
	b := newBoundary("unrestricted")
	for t := range categoryForType {
		b.Allowed[t] = true
	}
	return b
}

var boundaryPresets = map[string]func() *SideEffectBoundary{
	"read_only":    ReadOnlyBoundary,
	"strict":       StrictBoundary,
	"permissive":   PermissiveBoundary,
	"unrestricted": UnrestrictedBoundary,
}

// GetBoundary resolves a named preset. Unknown names return nil, which
// Allows treats as unrestricted.
func GetBoundary(name string) *SideEffectBoundary {
	if ctor, ok := boundaryPresets[name]; ok {
		return ctor()
	}
	return nil
}
