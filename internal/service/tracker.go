package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexlab/tracer/internal/domain"
	"github.com/lexlab/tracer/internal/store"
)

const (
	defaultPersistTimeout = 5 * time.Second

	// persistAttempts bounds reload-and-reapply retries after a version
	// conflict with a concurrent writer on another instance.
	persistAttempts = 3
)

// UpdateRequest is one observed practice outcome entering the pipeline.
type UpdateRequest struct {
	LearnerID      uuid.UUID
	TenantID       uuid.UUID
	SkillID        string
	Correct        bool
	Context        domain.ContextTag
	ResponseTimeMs int
	Confidence     float64
}

// TrackerService is the state repository and update pipeline: it loads a
// learner's state, folds an observation through the classical update,
// forgetting, sequence blending, transfer propagation, confidence and
// scheduling steps, then persists and emits an event.
//
// Mutation is serialized per learner with an in-process lock; the version
// precondition on Save catches concurrent writers on other instances.
type TrackerService struct {
	store     domain.StateStore
	cache     domain.StateCache
	catalog   domain.SkillCatalog
	predictor domain.SequencePredictor
	publisher domain.EventPublisher
	logger    *zap.Logger

	clock          domain.Clock
	persistTimeout time.Duration

	locks sync.Map // "tenant/learner" -> *sync.RWMutex
}

func NewTrackerService(
	st domain.StateStore,
	cache domain.StateCache,
	catalog domain.SkillCatalog,
	predictor domain.SequencePredictor,
	publisher domain.EventPublisher,
	logger *zap.Logger,
) *TrackerService {
	return &TrackerService{
		store:          st,
		cache:          cache,
		catalog:        catalog,
		predictor:      predictor,
		publisher:      publisher,
		logger:         logger,
		clock:          domain.ClockFunc(time.Now),
		persistTimeout: defaultPersistTimeout,
	}
}

// SetClock overrides wall-clock time, for tests.
func (t *TrackerService) SetClock(c domain.Clock) {
	t.clock = c
}

// SetPersistTimeout overrides the per-persist deadline.
func (t *TrackerService) SetPersistTimeout(d time.Duration) {
	t.persistTimeout = d
}

func (t *TrackerService) lockFor(learnerID, tenantID uuid.UUID) *sync.RWMutex {
	key := tenantID.String() + "/" + learnerID.String()
	mu, _ := t.locks.LoadOrStore(key, &sync.RWMutex{})
	return mu.(*sync.RWMutex)
}

// UpdateMastery processes one practice observation and returns the updated
// skill state. The whole update aborts on persistence failure; no partial
// write survives. Enhancement layers (predictor, decay) degrade gracefully:
// their failure never blocks the classical result from persisting.
func (t *TrackerService) UpdateMastery(ctx context.Context, req UpdateRequest) (*domain.SkillState, error) {
	if req.SkillID == "" {
		return nil, fmt.Errorf("skill id is required")
	}

	mu := t.lockFor(req.LearnerID, req.TenantID)
	mu.Lock()
	defer mu.Unlock()

	now := t.clock.Now()
	var lastErr error
	for attempt := 0; attempt < persistAttempts; attempt++ {
		state, err := t.loadOrInit(ctx, req.LearnerID, req.TenantID)
		if err != nil {
			return nil, err
		}
		expected := state.Version

		t.applyPipeline(state, req, now)

		state.Version = expected + 1
		state.UpdatedAt = now

		pctx, cancel := context.WithTimeout(ctx, t.persistTimeout)
		err = t.store.Save(pctx, state, expected)
		cancel()
		if errors.Is(err, store.ErrVersionConflict) {
			// Another instance won the write; reload and reapply.
			t.cache.Del(req.LearnerID, req.TenantID)
			lastErr = err
			continue
		}
		if err != nil {
			// The in-memory mutation was applied to a possibly cached
			// state; drop it so nothing unpersisted is served.
			t.cache.Del(req.LearnerID, req.TenantID)
			return nil, fmt.Errorf("persist mastery state: %w", err)
		}

		t.cache.Set(req.LearnerID, req.TenantID, state)
		t.emit(ctx, state, state.Skills[req.SkillID], req, now)
		return state.Skills[req.SkillID].Clone(), nil
	}
	return nil, fmt.Errorf("update mastery: %w", lastErr)
}

// applyPipeline runs the in-memory update steps in pipeline order.
func (t *TrackerService) applyPipeline(state *domain.MasteryState, req UpdateRequest, now time.Time) {
	skill := ensureSkill(state, req.SkillID, t.catalog)

	var hoursIdle float64
	if skill.LastPracticed != nil {
		hoursIdle = now.Sub(*skill.LastPracticed).Hours()
	}

	ApplyObservation(skill, domain.PracticeEvent{
		Timestamp:      now,
		Correct:        req.Correct,
		ResponseTimeMs: req.ResponseTimeMs,
		Context:        req.Context,
		Difficulty:     skill.Difficulty,
		Confidence:     req.Confidence,
	})

	if hoursIdle > UpdateStaleness.Hours() {
		state.Forgetting.SetDecayRate(req.SkillID, DecayRate(skill))
		ApplyDecay(skill, hoursIdle)
	}

	t.blendPrediction(state, skill)

	if req.Correct {
		Propagate(state, req.SkillID, t.catalog)
	}

	UpdateConfidence(skill)
	Reschedule(state.Forgetting.EntryFor(req.SkillID), req.Correct, now, state.Forgetting.MaxIntervalDays)
}

// blendPrediction consults the sequence predictor and folds its estimate into
// the classical one. Any predictor failure, including a panic on malformed
// history, leaves the classical estimate untouched.
func (t *TrackerService) blendPrediction(state *domain.MasteryState, skill *domain.SkillState) {
	if t.predictor == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("sequence predictor panicked; keeping classical estimate",
				zap.String("skill_id", skill.SkillID),
				zap.Any("panic", r))
		}
	}()

	sequence := interactionSequence(state)
	predicted, confidence, err := t.predictor.Predict(sequence, skill.SkillID)
	if err != nil {
		if !errors.Is(err, domain.ErrInsufficientHistory) {
			t.logger.Warn("sequence prediction failed; keeping classical estimate",
				zap.String("skill_id", skill.SkillID),
				zap.Error(err))
		}
		return
	}
	skill.PMastery = BlendMastery(skill.PMastery, predicted, confidence)
}

// interactionSequence flattens every skill's event history into one
// chronological cross-skill sequence with hour gaps between consecutive
// events.
func interactionSequence(state *domain.MasteryState) []domain.Interaction {
	type timed struct {
		at time.Time
		ia domain.Interaction
	}
	var all []timed
	for id, skill := range state.Skills {
		for _, e := range skill.History {
			all = append(all, timed{at: e.Timestamp, ia: domain.Interaction{
				SkillID: id,
				Correct: e.Correct,
				Context: e.Context,
			}})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

	seq := make([]domain.Interaction, len(all))
	for i, ev := range all {
		if i > 0 {
			ev.ia.HoursSincePrev = ev.at.Sub(all[i-1].at).Hours()
		}
		seq[i] = ev.ia
	}
	return seq
}

// loadOrInit returns the learner's state from cache, store, or a fresh
// initialization for a learner never seen before.
func (t *TrackerService) loadOrInit(ctx context.Context, learnerID, tenantID uuid.UUID) (*domain.MasteryState, error) {
	if state, ok := t.cache.Get(learnerID, tenantID); ok {
		return state, nil
	}
	state, err := t.store.Load(ctx, learnerID, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.NewMasteryState(learnerID, tenantID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load mastery state: %w", err)
	}
	t.cache.Set(learnerID, tenantID, state)
	return state, nil
}

// emit publishes the update notification. Fire-and-forget: failures are
// logged and never retried.
func (t *TrackerService) emit(ctx context.Context, state *domain.MasteryState, skill *domain.SkillState, req UpdateRequest, now time.Time) {
	if t.publisher == nil {
		return
	}
	event := NewMasteryEvent(state, skill, req.Correct, req.Context, now)
	if err := t.publisher.Publish(ctx, event); err != nil {
		t.logger.Warn("failed to publish mastery event",
			zap.String("event_id", event.ID),
			zap.String("skill_id", event.SkillID),
			zap.Error(err))
	}
}

// GetMasteryState returns an isolated copy of the learner's state with
// read-through decay applied to skills idle past ReadStaleness. The decay is
// query-local: it is never persisted, so consecutive reads may drift slightly
// with the wall clock.
func (t *TrackerService) GetMasteryState(ctx context.Context, learnerID, tenantID uuid.UUID) (*domain.MasteryState, error) {
	mu := t.lockFor(learnerID, tenantID)
	mu.RLock()
	state, err := t.loadOrInit(ctx, learnerID, tenantID)
	var snapshot *domain.MasteryState
	if err == nil {
		snapshot = state.Clone()
	}
	mu.RUnlock()
	if err != nil {
		return nil, err
	}

	now := t.clock.Now()
	for _, skill := range snapshot.Skills {
		if skill.LastPracticed == nil {
			continue
		}
		idle := now.Sub(*skill.LastPracticed)
		if idle > ReadStaleness {
			ApplyDecay(skill, idle.Hours())
		}
	}
	return snapshot, nil
}

// GetReadySkills lists skills the learner is ready to work on: mastery below
// the threshold with every prerequisite mastered, ordered ascending by
// mastery so the weakest ready skill comes first. Curriculum skills never
// practiced count at the default prior.
func (t *TrackerService) GetReadySkills(ctx context.Context, learnerID, tenantID uuid.UUID) ([]string, error) {
	snapshot, err := t.GetMasteryState(ctx, learnerID, tenantID)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		id      string
		mastery float64
	}
	masteryOf := func(id string) float64 {
		if s, ok := snapshot.Skills[id]; ok {
			return s.PMastery
		}
		return domain.DefaultPMastery
	}
	prereqsOf := func(id string) []string {
		if s, ok := snapshot.Skills[id]; ok {
			return s.Prerequisites
		}
		if t.catalog != nil {
			if spec, ok := t.catalog.Spec(id); ok {
				return spec.Prerequisites
			}
		}
		return nil
	}

	seen := make(map[string]struct{})
	var candidates []candidate
	consider := func(id string) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		m := masteryOf(id)
		if m >= MasteryThreshold {
			return
		}
		for _, pre := range prereqsOf(id) {
			if masteryOf(pre) < MasteryThreshold {
				return
			}
		}
		candidates = append(candidates, candidate{id: id, mastery: m})
	}

	if t.catalog != nil {
		for _, spec := range t.catalog.Skills() {
			consider(spec.ID)
		}
	}
	for id := range snapshot.Skills {
		consider(id)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].mastery == candidates[j].mastery {
			return candidates[i].id < candidates[j].id
		}
		return candidates[i].mastery < candidates[j].mastery
	})

	ready := make([]string, len(candidates))
	for i, c := range candidates {
		ready[i] = c.id
	}
	return ready, nil
}

// GetReviewDue returns the learner's due schedule entries ascending by due
// date.
func (t *TrackerService) GetReviewDue(ctx context.Context, learnerID, tenantID uuid.UUID) ([]domain.ReviewEntry, error) {
	mu := t.lockFor(learnerID, tenantID)
	mu.RLock()
	defer mu.RUnlock()

	state, err := t.loadOrInit(ctx, learnerID, tenantID)
	if err != nil {
		return nil, err
	}
	return DueReviews(state.Forgetting, t.clock.Now()), nil
}
