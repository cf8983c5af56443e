// Package cli implements the tracer CLI commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lexlab/tracer/internal/config"
	"github.com/lexlab/tracer/internal/curriculum"
	"github.com/lexlab/tracer/internal/domain"
	"github.com/lexlab/tracer/internal/service"
	"github.com/lexlab/tracer/internal/store"
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "tracer",
	Short: "Per-learner knowledge-tracing engine",
	Long:  "Bayesian knowledge tracing with forgetting, spaced repetition, sequence-model blending and population-level prerequisite inference.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Load()
	},
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if level, err := zap.ParseAtomicLevel(config.LogLevel()); err == nil {
		cfg.Level = level
	}
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// openStore builds the configured state store. The returned cleanup releases
// the underlying connection pool or database.
func openStore(ctx context.Context, logger *zap.Logger) (domain.StateStore, func(), error) {
	switch backend := config.StoreBackend(); backend {
	case "postgres":
		dbURL := config.DatabaseURL()
		if dbURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping database: %w", err)
		}
		st := store.NewPostgresStore(pool)
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("connected to database")
		return st, pool.Close, nil
	case "badger":
		st, err := store.NewBadgerStore(config.BadgerPath())
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened badger store", zap.String("path", config.BadgerPath()))
		return st, func() { _ = st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// loadCatalog loads the curriculum registry; a missing file is tolerated so
// the engine can run on default skill specs.
func loadCatalog(logger *zap.Logger) domain.SkillCatalog {
	path := config.CurriculumPath()
	registry, err := curriculum.LoadYAML(path)
	if err != nil {
		logger.Warn("curriculum not loaded; using default skill specs",
			zap.String("path", path),
			zap.Error(err))
		return nil
	}
	logger.Info("curriculum loaded", zap.String("path", path), zap.Int("skills", registry.Len()))
	return registry
}

// newPredictor loads trained weights when configured, otherwise falls back to
// deterministic Xavier initialization over the catalog's skills.
func newPredictor(catalog domain.SkillCatalog, logger *zap.Logger) domain.SequencePredictor {
	if path := config.WeightsPath(); path != "" {
		weights, err := service.LoadWeights(path)
		if err == nil {
			logger.Info("sequence model weights loaded", zap.String("path", path))
			return service.NewLSTMPredictor(weights)
		}
		logger.Warn("weights unavailable; falling back to Xavier initialization",
			zap.String("path", path),
			zap.Error(err))
	}
	var skills []string
	if catalog != nil {
		for _, spec := range catalog.Skills() {
			skills = append(skills, spec.ID)
		}
	}
	weights := service.XavierWeights(skills, 0, 0, 0, 0)
	return service.NewLSTMPredictor(weights)
}

// newTracker wires the full update pipeline on top of an opened store.
func newTracker(st domain.StateStore, logger *zap.Logger) (*service.TrackerService, func(), error) {
	cache, err := store.NewRistrettoCache(config.CacheTTL())
	if err != nil {
		return nil, nil, fmt.Errorf("build cache: %w", err)
	}
	catalog := loadCatalog(logger)
	predictor := newPredictor(catalog, logger)
	publisher := service.NewLogPublisher(logger)

	tracker := service.NewTrackerService(st, cache, catalog, predictor, publisher, logger)
	tracker.SetPersistTimeout(config.PersistTimeout())
	return tracker, cache.Close, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
