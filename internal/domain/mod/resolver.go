package mod

import (
	"context"

	"github.com/felixgeelhaar/modkit/internal/ports"
)

// Resolution is the structured output of one resolution pass.
type Resolution struct {
	// Missing maps mod id to the dependency ids that were not found.
	Missing map[string][]string
	// Disabled maps mod id to dependency ids that were found but are
	// disabled. Reported, not blocking.
	Disabled map[string][]string
	// Conflicts maps mod id to the ids of mods it collides with.
	Conflicts map[string][]string
}

// HasProblems reports whether the pass found anything worth surfacing.
func (r *Resolution) HasProblems() bool {
	return len(r.Missing) > 0 || len(r.Disabled) > 0 || len(r.Conflicts) > 0
}

// Resolver annotates the known-mod set with dependency satisfaction and
// identifier conflicts. It must be re-run over the full set whenever the
// set changes: adding, removing, or toggling one mod can change the
// status of every other mod.
type Resolver struct {
	logger ports.Logger
}

// NewResolver creates a resolver.
func NewResolver(logger ports.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Run performs a full resolution pass over the registry: dependency
// resolution is O(U×D); conflict detection checks every unordered pair in
// both directions. U stays small in this domain, so the quadratic pass is
// acceptable.
func (r *Resolver) Run(ctx context.Context, registry *Registry) *Resolution {
	mods := registry.All()
	index := registry.Index()

	for _, m := range mods {
		m.ResetRelations()
	}

	for _, m := range mods {
		m.UpdateDependencies(ctx, index)
	}

	// Evaluate each unit's gate once up front. Statically-broken units
	// are then already invalid when the pairwise pass applies its
	// skip-invalid rule, instead of only after a first load attempt.
	for _, m := range mods {
		m.CanLoad()
	}

	for i := 0; i < len(mods); i++ {
		for j := i + 1; j < len(mods); j++ {
			mods[i].UpdateConflicts(ctx, mods[j])
			mods[j].UpdateConflicts(ctx, mods[i])
		}
	}

	result := &Resolution{
		Missing:   make(map[string][]string),
		Disabled:  make(map[string][]string),
		Conflicts: make(map[string][]string),
	}
	for _, m := range mods {
		if missing := m.UnsatisfiedDependencies(); len(missing) > 0 {
			result.Missing[m.ID()] = missing
		}
		if disabled := m.DisabledDependencies(); len(disabled) > 0 {
			result.Disabled[m.ID()] = disabled
		}
		if conflicts := m.ConflictingUnits(); len(conflicts) > 0 {
			result.Conflicts[m.ID()] = conflicts
		}
	}

	r.logger.Debug(ctx, "resolution pass complete",
		ports.F("mods", len(mods)),
		ports.F("missing", len(result.Missing)),
		ports.F("conflicting", len(result.Conflicts)))
	return result
}
