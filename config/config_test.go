package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "interviewrt:session:", cfg.RedisPrefix)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, 3, cfg.Orchestrator.CodingProblemCount, "orchestrator defaults apply when unset")
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("INTERVIEWD_LISTEN_ADDR", ":9999")
	t.Setenv("INTERVIEWD_REDIS_ADDR", "redis:6379")
	t.Setenv("INTERVIEWD_SESSION_TTL", "30m")
	t.Setenv("INTERVIEWD_FFMPEG_PATH", "/usr/bin/ffmpeg")
	t.Setenv("INTERVIEWD_LLM_PROVIDER", "anthropic")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "/usr/bin/ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
}

func TestLoad_SilenceTimeoutOverride(t *testing.T) {
	t.Setenv("INTERVIEWD_SILENCE_TIMEOUT", "45s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Orchestrator.SilenceTimeout)
}

func TestLoad_SilenceTimeoutMalformedIsError(t *testing.T) {
	t.Setenv("INTERVIEWD_SILENCE_TIMEOUT", "not-a-duration")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_CodingProblemCountOverride(t *testing.T) {
	t.Setenv("INTERVIEWD_CODING_PROBLEM_COUNT", "5")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Orchestrator.CodingProblemCount)
}

func TestLoad_CodingProblemCountMalformedIsError(t *testing.T) {
	t.Setenv("INTERVIEWD_CODING_PROBLEM_COUNT", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_IntroTemplateOverride(t *testing.T) {
	t.Setenv("INTERVIEWD_INTRO_TEMPLATE", "欢迎 {{position_name}}")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "欢迎 {{position_name}}", cfg.Orchestrator.IntroTemplate)
}
