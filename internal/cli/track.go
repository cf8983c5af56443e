package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexlab/tracer/internal/domain"
	"github.com/lexlab/tracer/internal/service"
)

var (
	trackSkill   string
	trackCorrect bool
	trackContext string
	trackRTMs    int
)

func init() {
	track := &cobra.Command{
		Use:   "track",
		Short: "Record one practice outcome and print the updated skill state",
		Run:   runTrack,
	}
	track.Flags().StringVar(&reviewLearner, "learner", "", "Learner UUID (required)")
	track.Flags().StringVar(&reviewTenant, "tenant", "", "Tenant UUID (required)")
	track.Flags().StringVar(&trackSkill, "skill", "", "Skill id (required)")
	track.Flags().BoolVar(&trackCorrect, "correct", false, "Whether the response was correct")
	track.Flags().StringVar(&trackContext, "context", string(domain.ContextDrill), "Activity context (assessment, storybook, arena, drill)")
	track.Flags().IntVar(&trackRTMs, "response-time-ms", 0, "Response time in milliseconds")
	_ = track.MarkFlagRequired("learner")
	_ = track.MarkFlagRequired("tenant")
	_ = track.MarkFlagRequired("skill")

	state := &cobra.Command{
		Use:   "state",
		Short: "Print the learner's full mastery state",
		Run:   runState,
	}
	state.Flags().StringVar(&reviewLearner, "learner", "", "Learner UUID (required)")
	state.Flags().StringVar(&reviewTenant, "tenant", "", "Tenant UUID (required)")
	_ = state.MarkFlagRequired("learner")
	_ = state.MarkFlagRequired("tenant")

	RootCmd.AddCommand(track, state)
}

func runTrack(cmd *cobra.Command, args []string) {
	learnerID, tenantID := parseIDs()
	if !domain.ValidContextTag(trackContext) {
		exitErr("parse context", fmt.Errorf("unknown context %q", trackContext))
	}

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	st, cleanup, err := openStore(cmd.Context(), logger)
	if err != nil {
		exitErr("open store", err)
	}
	defer cleanup()

	tracker, closeCache, err := newTracker(st, logger)
	if err != nil {
		exitErr("build tracker", err)
	}
	defer closeCache()

	skill, err := tracker.UpdateMastery(cmd.Context(), service.UpdateRequest{
		LearnerID:      learnerID,
		TenantID:       tenantID,
		SkillID:        trackSkill,
		Correct:        trackCorrect,
		Context:        domain.ContextTag(trackContext),
		ResponseTimeMs: trackRTMs,
	})
	if err != nil {
		exitErr("update mastery", err)
	}

	b, _ := json.MarshalIndent(skill, "", "  ")
	fmt.Println(string(b))
}

func runState(cmd *cobra.Command, args []string) {
	learnerID, tenantID := parseIDs()

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	st, cleanup, err := openStore(cmd.Context(), logger)
	if err != nil {
		exitErr("open store", err)
	}
	defer cleanup()

	tracker, closeCache, err := newTracker(st, logger)
	if err != nil {
		exitErr("build tracker", err)
	}
	defer closeCache()

	state, err := tracker.GetMasteryState(cmd.Context(), learnerID, tenantID)
	if err != nil {
		exitErr("get mastery state", err)
	}

	bands := make(map[string]domain.MasteryBand, len(state.Skills))
	for id, skill := range state.Skills {
		bands[id] = domain.BandFor(skill.PMastery)
	}
	out := struct {
		*domain.MasteryState
		Bands map[string]domain.MasteryBand `json:"bands,omitempty"`
	}{state, bands}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
