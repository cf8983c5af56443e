package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexlab/tracer/internal/config"
	"github.com/lexlab/tracer/internal/service"
)

func init() {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the nightly prerequisite-inference schedule",
		Run:   runDaemon,
	}

	RootCmd.AddCommand(cmd)
}

func runDaemon(cmd *cobra.Command, args []string) {
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	st, cleanup, err := openStore(cmd.Context(), logger)
	if err != nil {
		exitErr("open store", err)
	}
	defer cleanup()

	svc := service.NewInferenceService(st, logger, config.InferenceRate())
	if err := svc.StartNightly(config.InferenceSchedule()); err != nil {
		exitErr("schedule inference", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	svc.Stop()
}
