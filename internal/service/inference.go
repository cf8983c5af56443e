package service

import (
	"context"
	"sort"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lexlab/tracer/internal/domain"
)

const (
	// defaultMinSnapshots is the minimum co-observed learner count before a
	// pair is tested at all.
	defaultMinSnapshots = 50
	// minGroupSize is the minimum size of each conditional group.
	minGroupSize = 10
	// edgeLiftThreshold is the required P(B|A) − P(B|¬A) difference.
	edgeLiftThreshold = 0.2
	// edgeConditionalThreshold is the required P(B|A).
	edgeConditionalThreshold = 0.5
	// maxInferredEdges caps the emitted ranking.
	maxInferredEdges = 100

	inferenceRunTimeout = 30 * time.Minute
)

// pairCounts is the 2x2 contingency table for an unordered skill pair (a, b)
// with a < b lexicographically: nXY counts learners with a-mastered=X,
// b-mastered=Y at the mastery threshold.
type pairCounts struct {
	n11, n10, n01, n00 int
}

func (c pairCounts) total() int { return c.n11 + c.n10 + c.n01 + c.n00 }

type skillPair struct {
	a, b string
}

// InferenceService discovers implicit prerequisite edges from population
// statistics. It is a batch job: its output is staged for asynchronous
// curation and never merged into live graphs.
type InferenceService struct {
	store   domain.StateStore
	logger  *zap.Logger
	limiter *rate.Limiter

	scheduler *gocron.Scheduler
}

// NewInferenceService builds the engine. loadsPerSec throttles how fast the
// batch scan may pull states from the store so nightly runs do not contend
// with request-path persistence.
func NewInferenceService(store domain.StateStore, logger *zap.Logger, loadsPerSec float64) *InferenceService {
	if loadsPerSec <= 0 {
		loadsPerSec = 200
	}
	return &InferenceService{
		store:   store,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(loadsPerSec), int(loadsPerSec)),
	}
}

// InferPrerequisites scans every persisted state for a tenant, builds
// contingency tables for each co-observed skill pair and emits directional
// edges where mastery of one skill strongly predicts mastery of the other.
// Both directions are tested independently; an empty result is expected,
// correct behavior when evidence is thin. minEvidence overrides the default
// 50-snapshot requirement when positive.
func (s *InferenceService) InferPrerequisites(ctx context.Context, tenantID uuid.UUID, minEvidence int) ([]domain.GraphEdge, error) {
	minSnapshots := defaultMinSnapshots
	if minEvidence > 0 {
		minSnapshots = minEvidence
	}

	counts := make(map[skillPair]*pairCounts)
	learners := 0

	err := s.store.ForEachByTenant(ctx, tenantID, func(state *domain.MasteryState) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		learners++
		s.accumulate(counts, state)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var edges []domain.GraphEdge
	for pair, c := range counts {
		if c.total() < minSnapshots {
			continue
		}
		// a → b
		if e, ok := directionalEdge(pair.a, pair.b, c.n11, c.n10, c.n01, c.n00); ok {
			edges = append(edges, e)
		}
		// b → a: condition on b's mastery instead.
		if e, ok := directionalEdge(pair.b, pair.a, c.n11, c.n01, c.n10, c.n00); ok {
			edges = append(edges, e)
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Strength == edges[j].Strength {
			if edges[i].FromSkill == edges[j].FromSkill {
				return edges[i].ToSkill < edges[j].ToSkill
			}
			return edges[i].FromSkill < edges[j].FromSkill
		}
		return edges[i].Strength > edges[j].Strength
	})
	if len(edges) > maxInferredEdges {
		edges = edges[:maxInferredEdges]
	}

	s.logger.Info("prerequisite inference complete",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("learners", learners),
		zap.Int("pairs", len(counts)),
		zap.Int("edges", len(edges)))
	return edges, nil
}

// accumulate folds one learner snapshot into the pair tables. A skill counts
// as observed once it has at least one attempt, and as mastered at the
// standard threshold.
func (s *InferenceService) accumulate(counts map[skillPair]*pairCounts, state *domain.MasteryState) {
	type obs struct {
		id       string
		mastered bool
	}
	var observed []obs
	for id, skill := range state.Skills {
		if skill.TotalAttempts == 0 {
			continue
		}
		observed = append(observed, obs{id: id, mastered: skill.PMastery >= MasteryThreshold})
	}
	sort.Slice(observed, func(i, j int) bool { return observed[i].id < observed[j].id })

	for i := 0; i < len(observed); i++ {
		for j := i + 1; j < len(observed); j++ {
			pair := skillPair{a: observed[i].id, b: observed[j].id}
			c, ok := counts[pair]
			if !ok {
				c = &pairCounts{}
				counts[pair] = c
			}
			switch {
			case observed[i].mastered && observed[j].mastered:
				c.n11++
			case observed[i].mastered:
				c.n10++
			case observed[j].mastered:
				c.n01++
			default:
				c.n00++
			}
		}
	}
}

// directionalEdge tests from → to given counts split by the from-skill's
// mastery: withTo/withoutTo among from-masters, and among from-non-masters.
func directionalEdge(from, to string, withTo, withoutTo, notFromWithTo, notFromWithoutTo int) (domain.GraphEdge, bool) {
	mastered := withTo + withoutTo
	notMastered := notFromWithTo + notFromWithoutTo
	if mastered < minGroupSize || notMastered < minGroupSize {
		return domain.GraphEdge{}, false
	}

	pGiven := float64(withTo) / float64(mastered)
	pGivenNot := float64(notFromWithTo) / float64(notMastered)
	diff := pGiven - pGivenNot
	if diff <= edgeLiftThreshold || pGiven <= edgeConditionalThreshold {
		return domain.GraphEdge{}, false
	}

	return domain.GraphEdge{
		FromSkill: from,
		ToSkill:   to,
		Strength:  diff,
		Type:      domain.EdgeInferred,
		Evidence:  mastered + notMastered,
	}, true
}

// StartNightly schedules a daily run over every tenant at the given local
// time ("HH:MM"). The job runs out-of-band and never blocks update latency.
func (s *InferenceService) StartNightly(at string) error {
	s.scheduler = gocron.NewScheduler(time.Local)
	_, err := s.scheduler.Every(1).Day().At(at).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), inferenceRunTimeout)
		defer cancel()
		s.RunAll(ctx)
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("nightly inference scheduled", zap.String("at", at))
	return nil
}

// Stop halts the nightly schedule.
func (s *InferenceService) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunAll runs inference for every tenant with persisted state.
func (s *InferenceService) RunAll(ctx context.Context) {
	tenants, err := s.store.ListTenants(ctx)
	if err != nil {
		s.logger.Error("failed to list tenants for inference", zap.Error(err))
		return
	}
	for _, tenantID := range tenants {
		edges, err := s.InferPrerequisites(ctx, tenantID, 0)
		if err != nil {
			s.logger.Error("inference failed for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
			continue
		}
		for _, e := range edges {
			s.logger.Info("inferred prerequisite edge staged",
				zap.String("tenant_id", tenantID.String()),
				zap.String("from", e.FromSkill),
				zap.String("to", e.ToSkill),
				zap.Float64("strength", e.Strength),
				zap.Int("evidence", e.Evidence))
		}
	}
}
