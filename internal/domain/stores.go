package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrInsufficientHistory is returned by a SequencePredictor when the
// interaction sequence is too short to support a prediction. It is not a
// failure: callers fall back to the classical estimate.
var ErrInsufficientHistory = errors.New("insufficient interaction history")

// StateStore persists opaque MasteryState blobs keyed by (learner, tenant).
type StateStore interface {
	// Load returns the stored state or store.ErrNotFound.
	Load(ctx context.Context, learnerID, tenantID uuid.UUID) (*MasteryState, error)
	// Save upserts the state. expectedVersion is the version the caller
	// loaded; a mismatch with the stored row fails with
	// store.ErrVersionConflict and writes nothing.
	Save(ctx context.Context, state *MasteryState, expectedVersion int64) error
	// ListTenants returns the distinct tenant IDs with stored states.
	ListTenants(ctx context.Context) ([]uuid.UUID, error)
	// ForEachByTenant streams every state for a tenant, for batch jobs.
	ForEachByTenant(ctx context.Context, tenantID uuid.UUID, fn func(*MasteryState) error) error
}

// StateCache is the injected per-process cache in front of the StateStore.
type StateCache interface {
	Get(learnerID, tenantID uuid.UUID) (*MasteryState, bool)
	Set(learnerID, tenantID uuid.UUID, state *MasteryState)
	Del(learnerID, tenantID uuid.UUID)
}

// Interaction is one element of a learner's chronological cross-skill
// sequence, the input unit of the sequence predictor.
type Interaction struct {
	SkillID        string
	Correct        bool
	HoursSincePrev float64
	Context        ContextTag
}

// SequencePredictor estimates mastery of a target skill from the learner's
// full interaction sequence. Implementations are pure and safe for
// concurrent use once constructed.
type SequencePredictor interface {
	// Predict returns (probability, confidence). It returns
	// ErrInsufficientHistory when the sequence is too short to predict.
	Predict(sequence []Interaction, targetSkill string) (float64, float64, error)
}

// SkillSpec is one entry of the curriculum skill registry.
type SkillSpec struct {
	ID             string    `yaml:"id" json:"id"`
	Kind           SkillKind `yaml:"kind" json:"kind"`
	Phase          int       `yaml:"phase" json:"phase"`
	Difficulty     float64   `yaml:"difficulty" json:"difficulty"`
	Prerequisites  []string  `yaml:"prerequisites" json:"prerequisites,omitempty"`
	TransfersTo    []string  `yaml:"transfers_to" json:"transfers_to,omitempty"`
	CorrelatedWith []string  `yaml:"correlated_with" json:"correlated_with,omitempty"`
}

// SkillCatalog is the explicit skill registry populated from curriculum
// configuration at startup.
type SkillCatalog interface {
	// Spec returns the registered spec for a skill; ok is false for skills
	// the curriculum does not know, in which case callers fall back to
	// DefaultSkillSpec.
	Spec(skillID string) (SkillSpec, bool)
	// Skills returns all registered specs in curriculum order.
	Skills() []SkillSpec
	// Dependents returns the skills that list skillID as a prerequisite.
	Dependents(skillID string) []string
}

// DefaultSkillSpec is the fallback for skills observed in practice events but
// absent from the curriculum registry.
func DefaultSkillSpec(skillID string) SkillSpec {
	return SkillSpec{ID: skillID, Kind: SkillKindGPC, Phase: 1, Difficulty: 0.5}
}

// Clock abstracts wall-clock time so decay and scheduling are testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
