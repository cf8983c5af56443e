package domain

import "time"

// Spaced-repetition bounds shared by the scheduler and its persistence form.
const (
	MinEasiness        = 1.3
	MaxEasiness        = 2.5
	DefaultMaxInterval = 90
)

// ReviewEntry is one skill's position in the spaced-repetition schedule.
type ReviewEntry struct {
	SkillID      string    `json:"skill_id"`
	NextReview   time.Time `json:"next_review"`
	IntervalDays int       `json:"interval_days"`
	Easiness     float64   `json:"easiness"`
	Repetitions  int       `json:"repetitions"`
	LastResult   bool      `json:"last_result"`
}

// ForgettingModel holds the decay parameters, the per-skill decay-rate cache
// and the review schedule for one learner.
type ForgettingModel struct {
	BaseRate           float64 `json:"base_rate"`
	StabilityFactor    float64 `json:"stability_factor"`
	RetrievalThreshold float64 `json:"retrieval_threshold"`
	SpacingMultiplier  float64 `json:"spacing_multiplier"`
	MaxIntervalDays    int     `json:"max_interval_days"`

	DecayRates map[string]float64      `json:"decay_rates,omitempty"`
	Schedule   map[string]*ReviewEntry `json:"schedule,omitempty"`
}

func NewForgettingModel() *ForgettingModel {
	return &ForgettingModel{
		BaseRate:           0.3,
		StabilityFactor:    1.0,
		RetrievalThreshold: 0.5,
		SpacingMultiplier:  1.0,
		MaxIntervalDays:    DefaultMaxInterval,
		DecayRates:         make(map[string]float64),
		Schedule:           make(map[string]*ReviewEntry),
	}
}

// EntryFor returns the schedule entry for a skill, creating a fresh one on
// first use.
func (m *ForgettingModel) EntryFor(skillID string) *ReviewEntry {
	if m.Schedule == nil {
		m.Schedule = make(map[string]*ReviewEntry)
	}
	e, ok := m.Schedule[skillID]
	if !ok {
		e = &ReviewEntry{SkillID: skillID, Easiness: MaxEasiness, IntervalDays: 1}
		m.Schedule[skillID] = e
	}
	return e
}

// SetDecayRate records a skill's current decay rate. Both maps are omitted
// from the persisted form when empty, so they come back nil after a reload.
func (m *ForgettingModel) SetDecayRate(skillID string, rate float64) {
	if m.DecayRates == nil {
		m.DecayRates = make(map[string]float64)
	}
	m.DecayRates[skillID] = rate
}

// Clone returns a deep copy of the model.
func (m *ForgettingModel) Clone() *ForgettingModel {
	c := *m
	c.DecayRates = make(map[string]float64, len(m.DecayRates))
	for k, v := range m.DecayRates {
		c.DecayRates[k] = v
	}
	c.Schedule = make(map[string]*ReviewEntry, len(m.Schedule))
	for k, v := range m.Schedule {
		ec := *v
		c.Schedule[k] = &ec
	}
	return &c
}
