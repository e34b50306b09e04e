package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the reconciliation run. All values come
// from the environment with the defaults below; a .env file is honored
// for local invocations.
type Config struct {
	Lookback              time.Duration
	Baseline              time.Duration
	RampUp                time.Duration
	MinRuntime            time.Duration
	FlowIncreaseThreshold float64
	AnomalyWindowDays     []int

	TimestreamDatabase string
	ValveEventsTable   string
	FlowTable          string
	DerivedTable       string
	RunMetricsTable    string
	Region             string
}

func Load() (Config, error) {
	// Missing .env is fine; Lambda injects everything through the
	// function environment.
	_ = godotenv.Load()

	cfg := Config{
		TimestreamDatabase: envOr("TIMESTREAM_DATABASE", "irrigation"),
		ValveEventsTable:   envOr("VALVE_EVENTS_TABLE", "valve_events"),
		FlowTable:          envOr("FLOW_TABLE", "flow_rate"),
		DerivedTable:       envOr("DERIVED_TABLE", "derived"),
		RunMetricsTable:    envOr("RUN_METRICS_TABLE", "ValveRunMetrics"),
		Region:             envOr("AWS_REGION", "eu-west-1"),
	}

	var err error

	if cfg.Lookback, err = durationEnv("LOOKBACK_HOURS", 30, time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.Baseline, err = durationEnv("BASELINE_MINUTES", 5, time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RampUp, err = durationEnv("RAMP_UP_MINUTES", 2, time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.MinRuntime, err = durationEnv("MIN_RUN_MINUTES", 6, time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.FlowIncreaseThreshold, err = floatEnv("FLOW_INCREASE_THRESHOLD", 0.1); err != nil {
		return Config{}, err
	}
	if cfg.AnomalyWindowDays, err = windowsEnv("ANOMALY_WINDOW_DAYS", []int{7, 30, 90}); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback int, unit time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(fallback) * unit, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: expected positive integer", key, raw)
	}
	return time.Duration(n) * unit, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %v", key, raw, err)
	}
	return f, nil
}

func windowsEnv(key string, fallback []int) ([]int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	var days []int
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid %s %q: expected comma-separated positive day counts", key, raw)
		}
		days = append(days, n)
	}
	return days, nil
}
