package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexlab/tracer/internal/domain"
)

func newTestTracker(st domain.StateStore, cache *mockCache, catalog domain.SkillCatalog, predictor domain.SequencePredictor, publisher domain.EventPublisher) *TrackerService {
	return NewTrackerService(st, cache, catalog, predictor, publisher, zap.NewNop())
}

func drillRequest(learnerID, tenantID uuid.UUID, skillID string, correct bool) UpdateRequest {
	return UpdateRequest{
		LearnerID: learnerID,
		TenantID:  tenantID,
		SkillID:   skillID,
		Correct:   correct,
		Context:   domain.ContextDrill,
	}
}

func TestUpdateMasteryInitializesNewLearner(t *testing.T) {
	st := newMockStateStore()
	tracker := newTestTracker(st, newMockCache(), nil, nil, nil)
	learnerID, tenantID := uuid.New(), uuid.New()

	skill, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "sh", true))
	require.NoError(t, err)

	assert.Equal(t, 1, skill.TotalAttempts)
	assert.Greater(t, skill.PMastery, domain.DefaultPMastery)

	stored := st.stored(learnerID, tenantID)
	require.NotNil(t, stored)
	assert.Equal(t, int64(1), stored.Version)
	assert.Contains(t, stored.Skills, "sh")
}

func TestUpdateMasteryRequiresSkillID(t *testing.T) {
	tracker := newTestTracker(newMockStateStore(), newMockCache(), nil, nil, nil)

	_, err := tracker.UpdateMastery(context.Background(), drillRequest(uuid.New(), uuid.New(), "", true))
	require.Error(t, err)
}

func TestConcurrentUpdatesBothLand(t *testing.T) {
	st := newMockStateStore()
	st.saveDelay = 20 * time.Millisecond
	tracker := newTestTracker(st, newMockCache(), nil, nil, nil)
	learnerID, tenantID := uuid.New(), uuid.New()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "sh", i == 0))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	stored := st.stored(learnerID, tenantID)
	require.NotNil(t, stored)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, 2, stored.Skills["sh"].TotalAttempts)
	assert.Equal(t, 1, stored.Skills["sh"].CorrectAttempts)
}

func TestVersionConflictReloadsAndReapplies(t *testing.T) {
	st := newMockStateStore()
	cache := newMockCache()
	tracker := newTestTracker(st, cache, nil, nil, nil)
	learnerID, tenantID := uuid.New(), uuid.New()

	// The store holds version 5, written by another instance.
	current := domain.NewMasteryState(learnerID, tenantID)
	current.Version = 5
	current.Skills["sh"] = domain.NewSkillState(domain.DefaultSkillSpec("sh"))
	current.Skills["sh"].TotalAttempts = 9
	current.Skills["sh"].CorrectAttempts = 6
	require.NoError(t, st.Save(context.Background(), current, 0))

	// The local cache is stale at version 3.
	stale := domain.NewMasteryState(learnerID, tenantID)
	stale.Version = 3
	cache.Set(learnerID, tenantID, stale)

	savesBefore := st.saveCalls
	skill, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "sh", true))
	require.NoError(t, err)

	// The update reapplied on top of the store's copy, not the stale one.
	assert.Equal(t, 10, skill.TotalAttempts)
	assert.Equal(t, 2, st.saveCalls-savesBefore)

	stored := st.stored(learnerID, tenantID)
	assert.Equal(t, int64(6), stored.Version)
	assert.Equal(t, 10, stored.Skills["sh"].TotalAttempts)
}

func TestPersistFailureAbortsAndDropsCache(t *testing.T) {
	st := newMockStateStore()
	st.saveErr = errors.New("connection reset")
	cache := newMockCache()
	tracker := newTestTracker(st, cache, nil, nil, nil)
	learnerID, tenantID := uuid.New(), uuid.New()

	_, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "sh", true))
	require.Error(t, err)

	assert.Nil(t, st.stored(learnerID, tenantID))
	_, cached := cache.Get(learnerID, tenantID)
	assert.False(t, cached, "mutated state must not be served from cache")
}

func TestPredictionBlendFoldsIntoClassicalEstimate(t *testing.T) {
	st := newMockStateStore()
	tracker := newTestTracker(st, newMockCache(), nil, fixedPredictor{prob: 1.0, confidence: 0.95}, nil)
	learnerID, tenantID := uuid.New(), uuid.New()

	skill, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "sh", true))
	require.NoError(t, err)

	// Classical update from the default priors lands at 0.4; the fully
	// confident prediction of 1.0 pulls it up by the capped 0.4 weight.
	assert.InDelta(t, 0.6*0.4+0.4*1.0, skill.PMastery, 1e-9)
}

func TestInsufficientHistoryLeavesClassicalEstimate(t *testing.T) {
	st := newMockStateStore()
	tracker := newTestTracker(st, newMockCache(), nil, fixedPredictor{err: domain.ErrInsufficientHistory}, nil)
	learnerID, tenantID := uuid.New(), uuid.New()

	skill, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "sh", true))
	require.NoError(t, err)
	assert.InDelta(t, 0.4, skill.PMastery, 1e-9)
}

func TestPanickingPredictorDegradesGracefully(t *testing.T) {
	st := newMockStateStore()
	tracker := newTestTracker(st, newMockCache(), nil, panickyPredictor{}, nil)
	learnerID, tenantID := uuid.New(), uuid.New()

	skill, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "sh", true))
	require.NoError(t, err)
	assert.InDelta(t, 0.4, skill.PMastery, 1e-9)
	assert.NotNil(t, st.stored(learnerID, tenantID))
}

func TestUpdateEmitsMasteryEvent(t *testing.T) {
	st := newMockStateStore()
	publisher := &mockPublisher{}
	tracker := newTestTracker(st, newMockCache(), nil, nil, publisher)
	learnerID, tenantID := uuid.New(), uuid.New()

	_, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "sh", true))
	require.NoError(t, err)

	events := publisher.published()
	require.Len(t, events, 1)
	e := events[0]
	assert.Len(t, e.ID, 26) // ULID
	assert.Equal(t, learnerID, e.LearnerID)
	assert.Equal(t, tenantID, e.TenantID)
	assert.Equal(t, "sh", e.SkillID)
	assert.True(t, e.Correct)
	assert.Equal(t, domain.ContextDrill, e.Context)
	assert.Equal(t, 1, e.Streak)
}

func TestPublisherFailureDoesNotFailUpdate(t *testing.T) {
	st := newMockStateStore()
	publisher := &mockPublisher{err: errors.New("broker down")}
	tracker := newTestTracker(st, newMockCache(), nil, nil, publisher)
	learnerID, tenantID := uuid.New(), uuid.New()

	_, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "sh", true))
	require.NoError(t, err)
	assert.NotNil(t, st.stored(learnerID, tenantID))
}

func TestStaleSkillDecaysAtUpdate(t *testing.T) {
	st := newMockStateStore()
	learnerID, tenantID := uuid.New(), uuid.New()

	practiced := time.Now().Add(-31 * 24 * time.Hour)
	state := domain.NewMasteryState(learnerID, tenantID)
	skill := domain.NewSkillState(domain.DefaultSkillSpec("sh"))
	skill.PMastery = 0.9
	skill.TotalAttempts = 10
	skill.CorrectAttempts = 8
	skill.LastPracticed = &practiced
	state.Skills["sh"] = skill
	require.NoError(t, st.Save(context.Background(), state, 0))

	tracker := newTestTracker(st, newMockCache(), nil, nil, nil)
	updated, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "sh", true))
	require.NoError(t, err)

	// A month idle decays the estimate below what the correct answer alone
	// would have produced, and the decay rate is cached for inspection.
	assert.Less(t, updated.PMastery, 0.95)
	stored := st.stored(learnerID, tenantID)
	assert.Contains(t, stored.Forgetting.DecayRates, "sh")
}

func TestStaleUpdateAfterStoreRoundTrip(t *testing.T) {
	st := newJSONStateStore()
	learnerID, tenantID := uuid.New(), uuid.New()

	// Persist a learner whose decay-rate cache was empty at save time; the
	// omitempty maps come back nil from the serialized form.
	practiced := time.Now().Add(-31 * 24 * time.Hour)
	state := domain.NewMasteryState(learnerID, tenantID)
	skill := domain.NewSkillState(domain.DefaultSkillSpec("sh"))
	skill.PMastery = 0.9
	skill.TotalAttempts = 10
	skill.CorrectAttempts = 8
	skill.LastPracticed = &practiced
	state.Skills["sh"] = skill
	state.Version = 1
	require.NoError(t, st.Save(context.Background(), state, 0))

	reloaded, err := st.Load(context.Background(), learnerID, tenantID)
	require.NoError(t, err)
	require.Nil(t, reloaded.Forgetting.DecayRates)

	tracker := newTestTracker(st, newMockCache(), nil, nil, nil)
	updated, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "sh", true))
	require.NoError(t, err)
	assert.Less(t, updated.PMastery, 0.95)

	stored, err := st.Load(context.Background(), learnerID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Contains(t, stored.Forgetting.DecayRates, "sh")
	require.Contains(t, stored.Forgetting.Schedule, "sh")
	assert.Equal(t, 1, stored.Forgetting.Schedule["sh"].Repetitions)
}

func TestGetMasteryStateReadDecayIsQueryLocal(t *testing.T) {
	st := newMockStateStore()
	learnerID, tenantID := uuid.New(), uuid.New()

	practiced := time.Now().Add(-48 * time.Hour)
	state := domain.NewMasteryState(learnerID, tenantID)
	skill := domain.NewSkillState(domain.DefaultSkillSpec("sh"))
	skill.PMastery = 0.9
	skill.TotalAttempts = 10
	skill.CorrectAttempts = 5
	skill.LastPracticed = &practiced
	state.Skills["sh"] = skill
	require.NoError(t, st.Save(context.Background(), state, 0))

	tracker := newTestTracker(st, newMockCache(), nil, nil, nil)

	snapshot, err := tracker.GetMasteryState(context.Background(), learnerID, tenantID)
	require.NoError(t, err)
	assert.Less(t, snapshot.Skills["sh"].PMastery, 0.9)

	// The persisted copy is untouched and the snapshot is isolated.
	snapshot.Skills["sh"].PMastery = 0.001
	assert.InDelta(t, 0.9, st.stored(learnerID, tenantID).Skills["sh"].PMastery, 1e-9)

	again, err := tracker.GetMasteryState(context.Background(), learnerID, tenantID)
	require.NoError(t, err)
	assert.Greater(t, again.Skills["sh"].PMastery, 0.001)
}

func TestGetReadySkillsOrdersByWeakestFirst(t *testing.T) {
	catalog := newMockCatalog(
		domain.SkillSpec{ID: "s", Kind: domain.SkillKindGPC},
		domain.SkillSpec{ID: "sh", Kind: domain.SkillKindGPC, Prerequisites: []string{"s"}},
		domain.SkillSpec{ID: "th", Kind: domain.SkillKindGPC, Prerequisites: []string{"s"}},
	)
	st := newMockStateStore()
	learnerID, tenantID := uuid.New(), uuid.New()

	state := domain.NewMasteryState(learnerID, tenantID)
	mastered := domain.NewSkillState(domain.DefaultSkillSpec("s"))
	mastered.PMastery = 0.9
	state.Skills["s"] = mastered
	practiced := domain.NewSkillState(domain.DefaultSkillSpec("sh"))
	practiced.PMastery = 0.4
	practiced.Prerequisites = []string{"s"}
	state.Skills["sh"] = practiced
	require.NoError(t, st.Save(context.Background(), state, 0))

	tracker := newTestTracker(st, newMockCache(), catalog, nil, nil)
	ready, err := tracker.GetReadySkills(context.Background(), learnerID, tenantID)
	require.NoError(t, err)

	// th has never been practiced and sits at the default prior, below sh;
	// s itself is excluded as already mastered.
	assert.Equal(t, []string{"th", "sh"}, ready)
}

func TestGetReadySkillsGatesOnPrerequisites(t *testing.T) {
	catalog := newMockCatalog(
		domain.SkillSpec{ID: "s", Kind: domain.SkillKindGPC},
		domain.SkillSpec{ID: "sh", Kind: domain.SkillKindGPC, Prerequisites: []string{"s"}},
	)
	tracker := newTestTracker(newMockStateStore(), newMockCache(), catalog, nil, nil)

	ready, err := tracker.GetReadySkills(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)

	// A brand new learner is only ready for the prerequisite-free skill.
	assert.Equal(t, []string{"s"}, ready)
}

func TestGetReviewDueReflectsSchedule(t *testing.T) {
	st := newMockStateStore()
	tracker := newTestTracker(st, newMockCache(), nil, nil, nil)
	learnerID, tenantID := uuid.New(), uuid.New()

	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	tracker.SetClock(domain.ClockFunc(func() time.Time { return base }))

	_, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "sh", true))
	require.NoError(t, err)

	// Nothing is due immediately after a correct answer.
	due, err := tracker.GetReviewDue(context.Background(), learnerID, tenantID)
	require.NoError(t, err)
	assert.Empty(t, due)

	// One day later the first review comes due.
	tracker.SetClock(domain.ClockFunc(func() time.Time { return base.AddDate(0, 0, 1) }))
	due, err = tracker.GetReviewDue(context.Background(), learnerID, tenantID)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "sh", due[0].SkillID)
	assert.Equal(t, 1, due[0].IntervalDays)
}

func TestCorrectAnswerPropagatesTransfer(t *testing.T) {
	catalog := newMockCatalog(
		domain.SkillSpec{ID: "s", Kind: domain.SkillKindGPC, TransfersTo: []string{"sh"}},
		domain.SkillSpec{ID: "sh", Kind: domain.SkillKindGPC},
	)
	st := newMockStateStore()
	tracker := newTestTracker(st, newMockCache(), catalog, nil, nil)
	learnerID, tenantID := uuid.New(), uuid.New()

	_, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "s", true))
	require.NoError(t, err)

	stored := st.stored(learnerID, tenantID)
	require.Contains(t, stored.Skills, "sh")
	assert.Greater(t, stored.Skills["sh"].PTransit, domain.DefaultPTransit)
}

func TestIncorrectAnswerDoesNotPropagate(t *testing.T) {
	catalog := newMockCatalog(
		domain.SkillSpec{ID: "s", Kind: domain.SkillKindGPC, TransfersTo: []string{"sh"}},
		domain.SkillSpec{ID: "sh", Kind: domain.SkillKindGPC},
	)
	st := newMockStateStore()
	tracker := newTestTracker(st, newMockCache(), catalog, nil, nil)
	learnerID, tenantID := uuid.New(), uuid.New()

	_, err := tracker.UpdateMastery(context.Background(), drillRequest(learnerID, tenantID, "s", false))
	require.NoError(t, err)

	stored := st.stored(learnerID, tenantID)
	assert.NotContains(t, stored.Skills, "sh")
}
