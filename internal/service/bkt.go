package service

import (
	"math"

	"github.com/lexlab/tracer/internal/domain"
)

// Probability bounds enforced after every mutation.
const (
	MinProb = 0.001
	MaxProb = 0.999
)

// Adaptive tuning thresholds.
const (
	tuningMinAttempts = 20
	tuningWindow      = 20
	tuningHighAcc     = 0.9
	tuningLowAcc      = 0.3
	tuningShrink      = 0.95
	minSlip           = 0.01
	minGuess          = 0.05
)

// ClampProb forces p into [MinProb, MaxProb]. NaN and -Inf collapse to the
// lower bound, +Inf to the upper; values must stay probabilities by
// construction, so out-of-range inputs are corrected silently.
func ClampProb(p float64) float64 {
	if math.IsNaN(p) {
		return MinProb
	}
	if p < MinProb {
		return MinProb
	}
	if p > MaxProb {
		return MaxProb
	}
	return p
}

// Posterior returns P(mastered | observation) for the two-state model in the
// Corbett & Anderson form.
func Posterior(pMastery, pSlip, pGuess float64, correct bool) float64 {
	var evidence, joint float64
	if correct {
		joint = (1 - pSlip) * pMastery
		evidence = joint + pGuess*(1-pMastery)
	} else {
		joint = pSlip * pMastery
		evidence = joint + (1-pGuess)*(1-pMastery)
	}
	if evidence == 0 {
		return ClampProb(pMastery)
	}
	return ClampProb(joint / evidence)
}

// ApplyObservation folds one practice event into the skill state: Bayesian
// posterior, learning transition, counters, streaks, timestamps, event
// history and adaptive slip/guess tuning. Pure with respect to I/O.
func ApplyObservation(s *domain.SkillState, e domain.PracticeEvent) {
	posterior := Posterior(s.PMastery, s.PSlip, s.PGuess, e.Correct)
	s.PMastery = ClampProb(posterior + s.PTransit*(1-posterior))

	s.TotalAttempts++
	now := e.Timestamp
	s.LastPracticed = &now
	if e.Correct {
		s.CorrectAttempts++
		s.StreakCurrent++
		if s.StreakCurrent > s.StreakBest {
			s.StreakBest = s.StreakCurrent
		}
		t := e.Timestamp
		s.LastCorrect = &t
	} else {
		s.StreakCurrent = 0
	}

	s.RecordEvent(e)
	tuneParameters(s)
}

// tuneParameters adapts slip and guess once enough evidence has accumulated:
// a learner who is accurate while estimated as a master is slipping less than
// assumed; one who is inaccurate while estimated as a novice is guessing less
// than assumed.
func tuneParameters(s *domain.SkillState) {
	if s.TotalAttempts < tuningMinAttempts {
		return
	}
	acc := s.RecentAccuracy(tuningWindow)
	if acc > tuningHighAcc && s.PMastery > 0.8 {
		s.PSlip *= tuningShrink
		if s.PSlip < minSlip {
			s.PSlip = minSlip
		}
	}
	if acc < tuningLowAcc && s.PMastery < 0.3 {
		s.PGuess *= tuningShrink
		if s.PGuess < minGuess {
			s.PGuess = minGuess
		}
	}
}
