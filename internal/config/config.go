package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by TRACER_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("TRACER_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// StoreBackend selects the state store implementation.
// Valid values: postgres, badger. Defaults to "postgres".
func StoreBackend() string {
	b := os.Getenv("STORE_BACKEND")
	if b == "" {
		return "postgres"
	}
	return b
}

// BadgerPath is the data directory for the embedded badger store.
func BadgerPath() string {
	p := os.Getenv("BADGER_PATH")
	if p == "" {
		return "data/tracer"
	}
	return p
}

// CurriculumPath points at the YAML skill registry loaded at startup.
func CurriculumPath() string {
	p := os.Getenv("CURRICULUM_PATH")
	if p == "" {
		return "curriculum.yaml"
	}
	return p
}

// WeightsPath points at the sequence-model weight file. Empty means no
// trained weights are available and the predictor falls back to
// deterministic Xavier initialization.
func WeightsPath() string {
	return os.Getenv("WEIGHTS_PATH")
}

// PersistTimeout bounds each persistence call in the update pipeline.
// Defaults to 5s.
func PersistTimeout() time.Duration {
	ms, err := strconv.Atoi(os.Getenv("PERSIST_TIMEOUT_MS"))
	if err != nil || ms <= 0 {
		return 5 * time.Second
	}
	return time.Duration(ms) * time.Millisecond
}

// InferenceRate limits how many state loads per second the batch
// prerequisite-inference job may issue. Defaults to 200.
func InferenceRate() float64 {
	r, err := strconv.ParseFloat(os.Getenv("INFERENCE_RATE"), 64)
	if err != nil || r <= 0 {
		return 200
	}
	return r
}

// InferenceSchedule is the local time of day the nightly inference job runs.
// Defaults to "02:30".
func InferenceSchedule() string {
	s := os.Getenv("INFERENCE_SCHEDULE")
	if s == "" {
		return "02:30"
	}
	return s
}

// CacheTTL is the lifetime of cached learner states. Defaults to 15m.
func CacheTTL() time.Duration {
	sec, err := strconv.Atoi(os.Getenv("CACHE_TTL_SECONDS"))
	if err != nil || sec <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(sec) * time.Second
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
