package domain

import (
	"time"

	"github.com/google/uuid"
)

// MasteryState is the full tracing state for one learner within a tenant.
// It is owned by the state repository and mutated only through the update
// pipeline; Version increases exactly once per persisted mutation.
type MasteryState struct {
	LearnerID uuid.UUID `json:"learner_id"`
	TenantID  uuid.UUID `json:"tenant_id"`

	Skills     map[string]*SkillState `json:"skills"`
	Graph      PrerequisiteGraph      `json:"graph"`
	Forgetting *ForgettingModel       `json:"forgetting"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewMasteryState(learnerID, tenantID uuid.UUID) *MasteryState {
	return &MasteryState{
		LearnerID:  learnerID,
		TenantID:   tenantID,
		Skills:     make(map[string]*SkillState),
		Graph:      NewPrerequisiteGraph(),
		Forgetting: NewForgettingModel(),
	}
}

// Clone returns a deep copy, used to keep readers isolated from in-place
// mutation of the cached state.
func (m *MasteryState) Clone() *MasteryState {
	c := &MasteryState{
		LearnerID: m.LearnerID,
		TenantID:  m.TenantID,
		Version:   m.Version,
		UpdatedAt: m.UpdatedAt,
		Graph:     m.Graph.Clone(),
	}
	c.Skills = make(map[string]*SkillState, len(m.Skills))
	for id, s := range m.Skills {
		c.Skills[id] = s.Clone()
	}
	if m.Forgetting != nil {
		c.Forgetting = m.Forgetting.Clone()
	}
	return c
}
