package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexlab/tracer/internal/domain"
	"github.com/lexlab/tracer/internal/store"
)

// mockStateStore is an in-memory StateStore with the same version-conditional
// upsert semantics as the real backends, plus hooks for failure injection.
type mockStateStore struct {
	mu     sync.Mutex
	states map[string]*domain.MasteryState

	saveDelay time.Duration
	saveErr   error
	saveCalls int
	loadCalls int
}

func newMockStateStore() *mockStateStore {
	return &mockStateStore{states: make(map[string]*domain.MasteryState)}
}

func storeKey(learnerID, tenantID uuid.UUID) string {
	return tenantID.String() + "/" + learnerID.String()
}

func (m *mockStateStore) Load(ctx context.Context, learnerID, tenantID uuid.UUID) (*domain.MasteryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls++
	state, ok := m.states[storeKey(learnerID, tenantID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return state.Clone(), nil
}

func (m *mockStateStore) Save(ctx context.Context, state *domain.MasteryState, expectedVersion int64) error {
	if m.saveDelay > 0 {
		select {
		case <-time.After(m.saveDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		err := m.saveErr
		m.saveErr = nil
		return err
	}
	key := storeKey(state.LearnerID, state.TenantID)
	if existing, ok := m.states[key]; ok && existing.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	m.states[key] = state.Clone()
	return nil
}

func (m *mockStateStore) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, state := range m.states {
		if !seen[state.TenantID] {
			seen[state.TenantID] = true
			out = append(out, state.TenantID)
		}
	}
	return out, nil
}

func (m *mockStateStore) ForEachByTenant(ctx context.Context, tenantID uuid.UUID, fn func(*domain.MasteryState) error) error {
	m.mu.Lock()
	snapshot := make([]*domain.MasteryState, 0, len(m.states))
	for _, state := range m.states {
		if state.TenantID == tenantID {
			snapshot = append(snapshot, state.Clone())
		}
	}
	m.mu.Unlock()

	for _, state := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(state); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStateStore) stored(learnerID, tenantID uuid.UUID) *domain.MasteryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[storeKey(learnerID, tenantID)]
	if !ok {
		return nil
	}
	return state.Clone()
}

// jsonStateStore round-trips every state through its JSON form, matching the
// serialization behavior of the real backends (empty maps come back nil).
type jsonStateStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newJSONStateStore() *jsonStateStore {
	return &jsonStateStore{blobs: make(map[string][]byte)}
}

func (j *jsonStateStore) Load(ctx context.Context, learnerID, tenantID uuid.UUID) (*domain.MasteryState, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	blob, ok := j.blobs[storeKey(learnerID, tenantID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	state := &domain.MasteryState{}
	if err := json.Unmarshal(blob, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (j *jsonStateStore) Save(ctx context.Context, state *domain.MasteryState, expectedVersion int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	key := storeKey(state.LearnerID, state.TenantID)
	if blob, ok := j.blobs[key]; ok {
		var stored struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(blob, &stored); err != nil {
			return err
		}
		if stored.Version != expectedVersion {
			return store.ErrVersionConflict
		}
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return err
	}
	j.blobs[key] = blob
	return nil
}

func (j *jsonStateStore) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

func (j *jsonStateStore) ForEachByTenant(ctx context.Context, tenantID uuid.UUID, fn func(*domain.MasteryState) error) error {
	return nil
}

// mockCache is a map-backed StateCache.
type mockCache struct {
	mu      sync.Mutex
	entries map[string]*domain.MasteryState
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]*domain.MasteryState)}
}

func (c *mockCache) Get(learnerID, tenantID uuid.UUID) (*domain.MasteryState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.entries[storeKey(learnerID, tenantID)]
	return state, ok
}

func (c *mockCache) Set(learnerID, tenantID uuid.UUID, state *domain.MasteryState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[storeKey(learnerID, tenantID)] = state
}

func (c *mockCache) Del(learnerID, tenantID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, storeKey(learnerID, tenantID))
}

// mockPublisher records emitted mastery events.
type mockPublisher struct {
	mu     sync.Mutex
	events []domain.MasteryEvent
	err    error
}

func (p *mockPublisher) Publish(ctx context.Context, event domain.MasteryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *mockPublisher) published() []domain.MasteryEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.MasteryEvent(nil), p.events...)
}

// panickyPredictor simulates a sequence-model crash.
type panickyPredictor struct{}

func (panickyPredictor) Predict([]domain.Interaction, string) (float64, float64, error) {
	panic("weights corrupted")
}

// fixedPredictor returns a constant prediction.
type fixedPredictor struct {
	prob       float64
	confidence float64
	err        error
}

func (f fixedPredictor) Predict([]domain.Interaction, string) (float64, float64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	return f.prob, f.confidence, nil
}
