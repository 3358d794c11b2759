// Package config loads process configuration from environment
// variables. The teacher repo has no CLI-flag or config-file framework —
// every package reads its own os.Getenv directly (logger.init,
// providers/base_provider.go's API-key fallbacks, credentials/resolver.go)
// — so this package follows the same shape: one struct, one Load that
// reads env vars with defaults, no cobra/viper dependency introduced.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/interviewrt/runtime/orchestrator"
)

// Config is the full process configuration for cmd/interviewd.
type Config struct {
	ListenAddr string

	RedisAddr     string
	RedisPrefix   string
	SessionTTL    time.Duration

	FFmpegPath    string
	FFmpegTimeout time.Duration
	MediaRoot     string

	CodingProblemsPath string

	ASRURL    string
	ASRAppID  string
	ASRAPIKey string

	LLMProvider string

	Orchestrator orchestrator.Config

	MetricsAddr string
	OTLPEndpoint string
}

// Load builds a Config from environment variables, applying the same
// defaults DefaultConfig() documents for anything unset.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:    getEnv("INTERVIEWD_LISTEN_ADDR", ":8080"),
		RedisAddr:     getEnv("INTERVIEWD_REDIS_ADDR", ""),
		RedisPrefix:   getEnv("INTERVIEWD_REDIS_PREFIX", "interviewrt:session:"),
		SessionTTL:    getDuration("INTERVIEWD_SESSION_TTL", 2*time.Hour),
		FFmpegPath:    getEnv("INTERVIEWD_FFMPEG_PATH", "ffmpeg"),
		FFmpegTimeout: getDuration("INTERVIEWD_FFMPEG_TIMEOUT", 5*time.Minute),
		MediaRoot:     getEnv("INTERVIEWD_MEDIA_ROOT", "./data/clips"),
		CodingProblemsPath: getEnv("INTERVIEWD_CODING_PROBLEMS_PATH", ""),
		ASRURL:        getEnv("INTERVIEWD_ASR_URL", ""),
		ASRAppID:      getEnv("INTERVIEWD_ASR_APP_ID", ""),
		ASRAPIKey:     getEnv("INTERVIEWD_ASR_API_KEY", ""),
		LLMProvider:   getEnv("INTERVIEWD_LLM_PROVIDER", "openai"),
		MetricsAddr:   getEnv("INTERVIEWD_METRICS_ADDR", ":9090"),
		OTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	cfg.Orchestrator = orchestrator.DefaultConfig()
	if v, err := getDurationErr("INTERVIEWD_SILENCE_TIMEOUT"); err != nil {
		return cfg, err
	} else if v > 0 {
		cfg.Orchestrator.SilenceTimeout = v
	}
	if v := getEnv("INTERVIEWD_INTRO_TEMPLATE", ""); v != "" {
		cfg.Orchestrator.IntroTemplate = v
	}
	if v := getEnv("INTERVIEWD_CODING_PROBLEM_COUNT", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: INTERVIEWD_CODING_PROBLEM_COUNT: %w", err)
		}
		cfg.Orchestrator.CodingProblemCount = n
	}

	return cfg, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func getDuration(name string, fallback time.Duration) time.Duration {
	v, err := getDurationErr(name)
	if err != nil || v == 0 {
		return fallback
	}
	return v
}

func getDurationErr(name string) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", name, err)
	}
	return d, nil
}
