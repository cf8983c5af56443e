package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MasteryEvent is the fire-and-forget notification emitted after each
// successfully persisted update. ID is a ULID so downstream consumers can
// order events lexicographically.
type MasteryEvent struct {
	ID         string     `json:"id"`
	LearnerID  uuid.UUID  `json:"learner_id"`
	TenantID   uuid.UUID  `json:"tenant_id"`
	SkillID    string     `json:"skill_id"`
	PMastery   float64    `json:"p_mastery"`
	PRetention float64    `json:"p_retention"`
	Correct    bool       `json:"correct"`
	Context    ContextTag `json:"context"`
	Streak     int        `json:"streak"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// EventPublisher delivers mastery events to external consumers. Publish
// failures are logged by the caller and never retried.
type EventPublisher interface {
	Publish(ctx context.Context, event MasteryEvent) error
}
