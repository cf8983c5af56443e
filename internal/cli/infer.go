package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lexlab/tracer/internal/config"
	"github.com/lexlab/tracer/internal/service"
)

var (
	inferTenant      string
	inferMinEvidence int
)

func init() {
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Run prerequisite inference for one tenant and print the staged edges",
		Run:   runInfer,
	}
	cmd.Flags().StringVar(&inferTenant, "tenant", "", "Tenant UUID (required)")
	cmd.Flags().IntVar(&inferMinEvidence, "min-evidence", 0, "Minimum learner snapshots per pair (default 50)")
	_ = cmd.MarkFlagRequired("tenant")

	RootCmd.AddCommand(cmd)
}

func runInfer(cmd *cobra.Command, args []string) {
	tenantID, err := uuid.Parse(inferTenant)
	if err != nil {
		exitErr("parse tenant id", err)
	}

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	st, cleanup, err := openStore(cmd.Context(), logger)
	if err != nil {
		exitErr("open store", err)
	}
	defer cleanup()

	svc := service.NewInferenceService(st, logger, config.InferenceRate())
	edges, err := svc.InferPrerequisites(cmd.Context(), tenantID, inferMinEvidence)
	if err != nil {
		exitErr("infer prerequisites", err)
	}

	b, _ := json.MarshalIndent(edges, "", "  ")
	fmt.Println(string(b))
}
