package domain

import (
	"time"
)

type SkillKind string

const (
	SkillKindGPC       SkillKind = "gpc"
	SkillKindBlend     SkillKind = "blend"
	SkillKindSightWord SkillKind = "sight_word"
	SkillKindMorpheme  SkillKind = "morpheme"
)

func ValidSkillKind(k string) bool {
	switch SkillKind(k) {
	case SkillKindGPC, SkillKindBlend, SkillKindSightWord, SkillKindMorpheme:
		return true
	}
	return false
}

// ContextTag identifies the activity a practice observation came from.
type ContextTag string

const (
	ContextAssessment ContextTag = "assessment"
	ContextStorybook  ContextTag = "storybook"
	ContextArena      ContextTag = "arena"
	ContextDrill      ContextTag = "drill"
)

func ValidContextTag(c string) bool {
	switch ContextTag(c) {
	case ContextAssessment, ContextStorybook, ContextArena, ContextDrill:
		return true
	}
	return false
}

// MaxEventHistory bounds the per-skill practice event ring buffer.
const MaxEventHistory = 50

// PracticeEvent is a single observed practice outcome for a skill.
type PracticeEvent struct {
	Timestamp      time.Time  `json:"timestamp"`
	Correct        bool       `json:"correct"`
	ResponseTimeMs int        `json:"response_time_ms"`
	Context        ContextTag `json:"context"`
	Difficulty     float64    `json:"difficulty"`
	Confidence     float64    `json:"confidence"`
}

// Interval is a closed confidence interval over a proportion.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// SkillState tracks everything the engine knows about one (learner, skill) pair.
type SkillState struct {
	SkillID string    `json:"skill_id"`
	Kind    SkillKind `json:"kind"`
	Phase   int       `json:"phase"`

	// Classical BKT parameters, each held in [0.001, 0.999].
	PMastery float64 `json:"p_mastery"`
	PTransit float64 `json:"p_transit"`
	PSlip    float64 `json:"p_slip"`
	PGuess   float64 `json:"p_guess"`

	// Enhanced parameters.
	PRetention       float64 `json:"p_retention"`
	PTransfer        float64 `json:"p_transfer"`
	Difficulty       float64 `json:"difficulty"`
	Discriminability float64 `json:"discriminability"`

	TotalAttempts   int `json:"total_attempts"`
	CorrectAttempts int `json:"correct_attempts"`
	StreakCurrent   int `json:"streak_current"`
	StreakBest      int `json:"streak_best"`

	LastPracticed *time.Time `json:"last_practiced,omitempty"`
	LastCorrect   *time.Time `json:"last_correct,omitempty"`

	// History holds the most recent MaxEventHistory practice events, oldest first.
	History []PracticeEvent `json:"history,omitempty"`

	Prerequisites  []string `json:"prerequisites,omitempty"`
	TransfersTo    []string `json:"transfers_to,omitempty"`
	CorrelatedWith []string `json:"correlated_with,omitempty"`

	Confidence Interval `json:"confidence"`
	SampleSize int      `json:"sample_size"`
}

// Default parameter priors for a skill never practiced before.
const (
	DefaultPMastery   = 0.1
	DefaultPTransit   = 0.1
	DefaultPSlip      = 0.1
	DefaultPGuess     = 0.2
	DefaultPRetention = 0.95
	DefaultPTransfer  = 0.3
)

// NewSkillState lazily creates the state for a skill on its first observed
// event, seeded from the curriculum spec.
func NewSkillState(spec SkillSpec) *SkillState {
	return &SkillState{
		SkillID:          spec.ID,
		Kind:             spec.Kind,
		Phase:            spec.Phase,
		PMastery:         DefaultPMastery,
		PTransit:         DefaultPTransit,
		PSlip:            DefaultPSlip,
		PGuess:           DefaultPGuess,
		PRetention:       DefaultPRetention,
		PTransfer:        DefaultPTransfer,
		Difficulty:       spec.Difficulty,
		Discriminability: 1.0,
		Prerequisites:    append([]string(nil), spec.Prerequisites...),
		TransfersTo:      append([]string(nil), spec.TransfersTo...),
		CorrelatedWith:   append([]string(nil), spec.CorrelatedWith...),
		Confidence:       Interval{Lower: 0, Upper: 1},
	}
}

// RecordEvent appends a practice event, evicting the oldest entry once the
// buffer holds MaxEventHistory events.
func (s *SkillState) RecordEvent(e PracticeEvent) {
	s.History = append(s.History, e)
	if len(s.History) > MaxEventHistory {
		s.History = s.History[len(s.History)-MaxEventHistory:]
	}
}

// RecentAccuracy returns the fraction correct over the last n recorded events.
// With no recorded events it returns 0.
func (s *SkillState) RecentAccuracy(n int) float64 {
	events := s.History
	if n < len(events) {
		events = events[len(events)-n:]
	}
	if len(events) == 0 {
		return 0
	}
	correct := 0
	for _, e := range events {
		if e.Correct {
			correct++
		}
	}
	return float64(correct) / float64(len(events))
}

// Clone returns a deep copy of the skill state.
func (s *SkillState) Clone() *SkillState {
	c := *s
	if s.LastPracticed != nil {
		t := *s.LastPracticed
		c.LastPracticed = &t
	}
	if s.LastCorrect != nil {
		t := *s.LastCorrect
		c.LastCorrect = &t
	}
	c.History = append([]PracticeEvent(nil), s.History...)
	c.Prerequisites = append([]string(nil), s.Prerequisites...)
	c.TransfersTo = append([]string(nil), s.TransfersTo...)
	c.CorrelatedWith = append([]string(nil), s.CorrelatedWith...)
	return &c
}

// MasteryBand is the consumer-facing classification over continuous mastery.
type MasteryBand string

const (
	BandNotStarted MasteryBand = "not_started"
	BandEmerging   MasteryBand = "emerging"
	BandDeveloping MasteryBand = "developing"
	BandSecuring   MasteryBand = "securing"
	BandMastered   MasteryBand = "mastered"
)

// BandFor classifies a mastery probability into its reporting band.
func BandFor(pMastery float64) MasteryBand {
	switch {
	case pMastery >= 0.95:
		return BandMastered
	case pMastery >= 0.8:
		return BandSecuring
	case pMastery >= 0.6:
		return BandDeveloping
	case pMastery >= 0.3:
		return BandEmerging
	default:
		return BandNotStarted
	}
}
