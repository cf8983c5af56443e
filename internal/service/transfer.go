package service

import (
	"github.com/lexlab/tracer/internal/domain"
)

const (
	// MasteryThreshold is the probability above which a skill counts as
	// mastered for gating and inference purposes.
	MasteryThreshold = 0.7

	transferRate       = 0.05
	maxTransit         = 0.5
	prereqAcceleration = 1.2
)

// Propagate applies cross-skill effects after a correct observation of
// skillID: transfer targets learn faster, and skills whose prerequisites are
// now all mastered get their learning rate accelerated. Scope is the touched
// skill's direct relations only, so cost is O(degree).
func Propagate(state *domain.MasteryState, skillID string, catalog domain.SkillCatalog) {
	source, ok := state.Skills[skillID]
	if !ok {
		return
	}

	for _, targetID := range source.TransfersTo {
		target := ensureSkill(state, targetID, catalog)
		target.PTransit = ClampProb(minf(maxTransit, target.PTransit+source.PTransfer*transferRate))
	}

	for _, depID := range dependentsOf(state, skillID, catalog) {
		dep := ensureSkill(state, depID, catalog)
		if len(dep.Prerequisites) == 0 {
			continue
		}
		if allPrerequisitesMastered(state, dep) {
			dep.PTransit = ClampProb(minf(maxTransit, dep.PTransit*prereqAcceleration))
		}
	}
}

// dependentsOf unions the catalog's dependents with skills already tracked in
// the state whose prerequisite list names skillID.
func dependentsOf(state *domain.MasteryState, skillID string, catalog domain.SkillCatalog) []string {
	seen := make(map[string]struct{})
	var out []string
	if catalog != nil {
		for _, id := range catalog.Dependents(skillID) {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	for id, s := range state.Skills {
		for _, pre := range s.Prerequisites {
			if pre == skillID {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					out = append(out, id)
				}
				break
			}
		}
	}
	return out
}

func allPrerequisitesMastered(state *domain.MasteryState, s *domain.SkillState) bool {
	for _, pre := range s.Prerequisites {
		preState, ok := state.Skills[pre]
		if !ok || preState.PMastery < MasteryThreshold {
			return false
		}
	}
	return true
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// ensureSkill lazily creates a skill's state on first touch, seeded from the
// curriculum registry, and records its DEFINED prerequisite edges in the
// learner's graph snapshot.
func ensureSkill(state *domain.MasteryState, skillID string, catalog domain.SkillCatalog) *domain.SkillState {
	if s, ok := state.Skills[skillID]; ok {
		return s
	}
	spec, ok := domain.SkillSpec{}, false
	if catalog != nil {
		spec, ok = catalog.Spec(skillID)
	}
	if !ok {
		spec = domain.DefaultSkillSpec(skillID)
	}
	s := domain.NewSkillState(spec)
	state.Skills[skillID] = s
	for _, pre := range s.Prerequisites {
		state.Graph.AddEdge(domain.GraphEdge{
			FromSkill: pre,
			ToSkill:   skillID,
			Strength:  1,
			Type:      domain.EdgeDefined,
		})
	}
	return s
}
