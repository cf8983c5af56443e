package service

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/lexlab/tracer/internal/domain"
)

// NewMasteryEvent stamps an update notification with a fresh ULID.
func NewMasteryEvent(state *domain.MasteryState, skill *domain.SkillState, correct bool, tag domain.ContextTag, at time.Time) domain.MasteryEvent {
	return domain.MasteryEvent{
		ID:         ulid.Make().String(),
		LearnerID:  state.LearnerID,
		TenantID:   state.TenantID,
		SkillID:    skill.SkillID,
		PMastery:   skill.PMastery,
		PRetention: skill.PRetention,
		Correct:    correct,
		Context:    tag,
		Streak:     skill.StreakCurrent,
		OccurredAt: at,
	}
}

// LogPublisher emits mastery events to the structured log. It stands in for
// a message-bus publisher in deployments without one.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e domain.MasteryEvent) error {
	p.logger.Info("mastery updated",
		zap.String("event_id", e.ID),
		zap.String("learner_id", e.LearnerID.String()),
		zap.String("tenant_id", e.TenantID.String()),
		zap.String("skill_id", e.SkillID),
		zap.Float64("p_mastery", e.PMastery),
		zap.Float64("p_retention", e.PRetention),
		zap.Bool("correct", e.Correct),
		zap.String("context", string(e.Context)),
		zap.Int("streak", e.Streak))
	return nil
}
