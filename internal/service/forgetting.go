package service

import (
	"math"
	"sort"
	"time"

	"github.com/lexlab/tracer/internal/domain"
)

// Decay model constants.
const (
	minDecayRate      = 0.05
	baseDecayRate     = 0.3
	practiceRateBonus = 0.5
	streakRateBonus   = 0.3
	difficultyPenalty = 0.2

	// UpdateStaleness is how long a skill must sit idle before decay is
	// applied during an update; ReadStaleness is the read-through threshold.
	UpdateStaleness = 1 * time.Hour
	ReadStaleness   = 24 * time.Hour
)

// SM-2 schedule constants.
const (
	easinessPenalty = 0.2
	firstInterval   = 1
	secondInterval  = 3
)

// DecayRate computes a skill's forgetting rate: well-practiced, high-streak
// skills decay slower, hard skills decay faster. Bounded below by
// minDecayRate.
func DecayRate(s *domain.SkillState) float64 {
	practice := math.Min(1, float64(s.CorrectAttempts)/20)
	streak := math.Min(1, float64(s.StreakBest)/10)
	rate := baseDecayRate - practice*practiceRateBonus - streak*streakRateBonus + s.Difficulty*difficultyPenalty
	return math.Max(minDecayRate, rate)
}

// ApplyDecay decays mastery for hoursElapsed since last practice and returns
// the retention factor applied. Mastery never falls below the evidence floor
// min(0.3, correct/total * 0.5): accumulated evidence keeps supporting a
// minimum estimate regardless of elapsed time.
func ApplyDecay(s *domain.SkillState, hoursElapsed float64) float64 {
	if hoursElapsed <= 0 {
		return 1
	}
	rate := DecayRate(s)
	retention := math.Exp(-rate * hoursElapsed / 24)

	decayed := s.PMastery * retention
	if s.TotalAttempts > 0 {
		floor := math.Min(0.3, float64(s.CorrectAttempts)/float64(s.TotalAttempts)*0.5)
		if decayed < floor {
			decayed = floor
		}
	}
	s.PMastery = ClampProb(decayed)
	s.PRetention = ClampProb(retention)
	return retention
}

// Reschedule advances a skill's spaced-repetition entry after an observation.
// Correct recalls walk the 1d, 3d, round(prev * easiness) sequence capped at
// maxIntervalDays; an incorrect recall resets the repetition chain and eases
// the card by lowering its easiness factor.
func Reschedule(entry *domain.ReviewEntry, correct bool, now time.Time, maxIntervalDays int) {
	if maxIntervalDays <= 0 {
		maxIntervalDays = domain.DefaultMaxInterval
	}
	if correct {
		entry.Repetitions++
		switch entry.Repetitions {
		case 1:
			entry.IntervalDays = firstInterval
		case 2:
			entry.IntervalDays = secondInterval
		default:
			entry.IntervalDays = int(math.Round(float64(entry.IntervalDays) * entry.Easiness))
		}
		if entry.IntervalDays > maxIntervalDays {
			entry.IntervalDays = maxIntervalDays
		}
	} else {
		entry.Repetitions = 0
		entry.IntervalDays = 1
		entry.Easiness -= easinessPenalty
		if entry.Easiness < domain.MinEasiness {
			entry.Easiness = domain.MinEasiness
		}
	}
	entry.LastResult = correct
	entry.NextReview = now.AddDate(0, 0, entry.IntervalDays)
}

// DueReviews returns all schedule entries due at or before now, ascending by
// due date.
func DueReviews(m *domain.ForgettingModel, now time.Time) []domain.ReviewEntry {
	var due []domain.ReviewEntry
	for _, e := range m.Schedule {
		if !e.NextReview.After(now) {
			due = append(due, *e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextReview.Equal(due[j].NextReview) {
			return due[i].SkillID < due[j].SkillID
		}
		return due[i].NextReview.Before(due[j].NextReview)
	})
	return due
}
