package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSkillStateSeedsFromSpec(t *testing.T) {
	s := NewSkillState(SkillSpec{
		ID:            "sh",
		Kind:          SkillKindGPC,
		Phase:         2,
		Difficulty:    0.4,
		Prerequisites: []string{"s", "h"},
	})

	assert.Equal(t, "sh", s.SkillID)
	assert.Equal(t, 2, s.Phase)
	assert.Equal(t, 0.4, s.Difficulty)
	assert.Equal(t, DefaultPMastery, s.PMastery)
	assert.Equal(t, DefaultPGuess, s.PGuess)
	assert.Equal(t, []string{"s", "h"}, s.Prerequisites)
	assert.Equal(t, Interval{Lower: 0, Upper: 1}, s.Confidence)
	assert.Nil(t, s.LastPracticed)
}

func TestRecordEventEvictsOldest(t *testing.T) {
	s := NewSkillState(DefaultSkillSpec("sh"))
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < MaxEventHistory+10; i++ {
		s.RecordEvent(PracticeEvent{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Correct:   true,
			Context:   ContextDrill,
		})
	}

	require.Len(t, s.History, MaxEventHistory)
	// The ten oldest events were evicted.
	assert.Equal(t, base.Add(10*time.Minute), s.History[0].Timestamp)
	assert.Equal(t, base.Add(59*time.Minute), s.History[len(s.History)-1].Timestamp)
}

func TestRecentAccuracy(t *testing.T) {
	s := NewSkillState(DefaultSkillSpec("sh"))
	assert.Equal(t, 0.0, s.RecentAccuracy(10))

	outcomes := []bool{true, true, false, true, false, false, true, true, true, true}
	for _, correct := range outcomes {
		s.RecordEvent(PracticeEvent{Correct: correct})
	}

	assert.Equal(t, 0.7, s.RecentAccuracy(10))
	assert.Equal(t, 1.0, s.RecentAccuracy(4))
	// Asking for more than recorded uses everything available.
	assert.Equal(t, 0.7, s.RecentAccuracy(100))
}

func TestSkillStateCloneIsDeep(t *testing.T) {
	s := NewSkillState(SkillSpec{ID: "sh", Kind: SkillKindGPC, Prerequisites: []string{"s"}})
	now := time.Now()
	s.LastPracticed = &now
	s.RecordEvent(PracticeEvent{Timestamp: now, Correct: true})

	c := s.Clone()
	c.PMastery = 0.9
	c.History[0].Correct = false
	c.Prerequisites[0] = "x"
	*c.LastPracticed = now.Add(time.Hour)

	assert.Equal(t, DefaultPMastery, s.PMastery)
	assert.True(t, s.History[0].Correct)
	assert.Equal(t, "s", s.Prerequisites[0])
	assert.Equal(t, now, *s.LastPracticed)
}

func TestBandForBoundaries(t *testing.T) {
	cases := []struct {
		p    float64
		want MasteryBand
	}{
		{0.0, BandNotStarted},
		{0.29, BandNotStarted},
		{0.3, BandEmerging},
		{0.59, BandEmerging},
		{0.6, BandDeveloping},
		{0.79, BandDeveloping},
		{0.8, BandSecuring},
		{0.94, BandSecuring},
		{0.95, BandMastered},
		{0.999, BandMastered},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BandFor(tc.p), "p=%v", tc.p)
	}
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidSkillKind("gpc"))
	assert.True(t, ValidSkillKind("sight_word"))
	assert.False(t, ValidSkillKind("word"))
	assert.False(t, ValidSkillKind(""))

	assert.True(t, ValidContextTag("storybook"))
	assert.False(t, ValidContextTag("homework"))
}
