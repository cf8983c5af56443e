package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	reviewLearner string
	reviewTenant  string
)

func init() {
	due := &cobra.Command{
		Use:   "review",
		Short: "List a learner's due spaced-repetition entries",
		Run:   runReview,
	}
	due.Flags().StringVar(&reviewLearner, "learner", "", "Learner UUID (required)")
	due.Flags().StringVar(&reviewTenant, "tenant", "", "Tenant UUID (required)")
	_ = due.MarkFlagRequired("learner")
	_ = due.MarkFlagRequired("tenant")

	ready := &cobra.Command{
		Use:   "ready",
		Short: "List skills the learner is ready to practice, weakest first",
		Run:   runReady,
	}
	ready.Flags().StringVar(&reviewLearner, "learner", "", "Learner UUID (required)")
	ready.Flags().StringVar(&reviewTenant, "tenant", "", "Tenant UUID (required)")
	_ = ready.MarkFlagRequired("learner")
	_ = ready.MarkFlagRequired("tenant")

	RootCmd.AddCommand(due, ready)
}

func parseIDs() (learnerID, tenantID uuid.UUID) {
	learnerID, err := uuid.Parse(reviewLearner)
	if err != nil {
		exitErr("parse learner id", err)
	}
	tenantID, err = uuid.Parse(reviewTenant)
	if err != nil {
		exitErr("parse tenant id", err)
	}
	return learnerID, tenantID
}

func runReview(cmd *cobra.Command, args []string) {
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

	due, err := tracker.GetReviewDue(cmd.Context(), learnerID, tenantID)
	if err != nil {
		exitErr("get review due", err)
	}

	b, _ := json.MarshalIndent(due, "", "  ")
	fmt.Println(string(b))
}

func runReady(cmd *cobra.Command, args []string) {
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

	ready, err := tracker.GetReadySkills(cmd.Context(), learnerID, tenantID)
	if err != nil {
		exitErr("get ready skills", err)
	}

	b, _ := json.MarshalIndent(ready, "", "  ")
	fmt.Println(string(b))
}
