package service

import (
	"math"

	"github.com/lexlab/tracer/internal/domain"
)

// wilsonZ is the 95% normal quantile.
const wilsonZ = 1.96

// WilsonInterval returns the Wilson score interval for proportion p observed
// over n trials. With n = 0 the interval is [0, 1]: no evidence constrains
// nothing. The interval lets consumers distinguish a thin-evidence estimate
// from a well-supported one before acting on it.
func WilsonInterval(p float64, n int) domain.Interval {
	if n <= 0 {
		return domain.Interval{Lower: 0, Upper: 1}
	}
	nf := float64(n)
	z2 := wilsonZ * wilsonZ

	denom := 1 + z2/nf
	center := (p + z2/(2*nf)) / denom
	margin := wilsonZ * math.Sqrt(p*(1-p)/nf+z2/(4*nf*nf)) / denom

	lower := center - margin
	upper := center + margin
	if lower < 0 {
		lower = 0
	}
	if upper > 1 {
		upper = 1
	}
	return domain.Interval{Lower: lower, Upper: upper}
}

// UpdateConfidence recomputes a skill's interval from its current mastery
// estimate and attempt count.
func UpdateConfidence(s *domain.SkillState) {
	s.Confidence = WilsonInterval(s.PMastery, s.TotalAttempts)
	s.SampleSize = s.TotalAttempts
}
