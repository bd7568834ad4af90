package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPipelineYAML = `
execution:
  method_timeout: 30s
  phase_timeout: 5m
  retry: 3
  seed: 42
  concurrency_cap: 4
artifacts_dir: ./run-artifacts
retention_days: 14
`

func writeConfigDir(t *testing.T, pipelineYAML, catalogJSON, registryJSON string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.yaml"), []byte(pipelineYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.json"), []byte(catalogJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "registry.json"), []byte(registryJSON), 0o644))
	return dir
}

func TestInitialize_LoadsValidConfig(t *testing.T) {
	dir := writeConfigDir(t, validPipelineYAML, `{"methods":[]}`, `{"methods":{}}`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), cfg.Execution.Seed)
	assert.Equal(t, 3, cfg.Execution.Retry)
	assert.Equal(t, 4, cfg.Execution.ConcurrencyCap)
	assert.Equal(t, "./run-artifacts", cfg.ArtifactsDir)
	assert.Equal(t, 14, cfg.RetentionDays)
	assert.Equal(t, DefaultCircuitBreakerConfig(), cfg.CircuitBreaker)
}

func TestInitialize_AppliesArtifactsAndRetentionDefaults(t *testing.T) {
	minimal := `
execution:
  method_timeout: 10s
  phase_timeout: 1m
  retry: 0
  seed: 7
  concurrency_cap: 1
`
	dir := writeConfigDir(t, minimal, `{}`, `{}`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultArtifactsDir, cfg.ArtifactsDir)
	assert.Equal(t, DefaultRetentionDays, cfg.RetentionDays)
}

func TestInitialize_RejectsMissingSeed(t *testing.T) {
	missingSeed := `
execution:
  method_timeout: 10s
  phase_timeout: 1m
  retry: 0
  concurrency_cap: 1
`
	dir := writeConfigDir(t, missingSeed, `{}`, `{}`)

	_, err := Initialize(context.Background(), dir)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestInitialize_RejectsZeroConcurrencyCap(t *testing.T) {
	bad := `
execution:
  method_timeout: 10s
  phase_timeout: 1m
  retry: 0
  seed: 1
  concurrency_cap: 0
`
	dir := writeConfigDir(t, bad, `{}`, `{}`)

	_, err := Initialize(context.Background(), dir)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestInitialize_RejectsMissingConfigFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestInitialize_RejectsEmptyCatalog(t *testing.T) {
	dir := writeConfigDir(t, validPipelineYAML, ``, `{}`)
	_, err := Initialize(context.Background(), dir)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestInitialize_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("PDMAUDIT_TEST_SEED", "99")
	withEnv := `
execution:
  method_timeout: 10s
  phase_timeout: 1m
  retry: 1
  seed: ${PDMAUDIT_TEST_SEED}
  concurrency_cap: 2
`
	dir := writeConfigDir(t, withEnv, `{}`, `{}`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), cfg.Execution.Seed)
}

func TestInitialize_MergesCircuitBreakerOverride(t *testing.T) {
	withOverride := validPipelineYAML + "\ncircuit_breaker:\n  consecutive_failure_threshold: 5\n"
	dir := writeConfigDir(t, withOverride, `{}`, `{}`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.CircuitBreaker.ConsecutiveFailureThreshold)
	assert.Equal(t, DefaultCircuitBreakerConfig().HistoryLimit, cfg.CircuitBreaker.HistoryLimit)
}

func TestHashFile_IsStableForSameContent(t *testing.T) {
	a := HashFile([]byte(`{"a":1}`))
	b := HashFile([]byte(`{"a":1}`))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, HashFile([]byte(`{"a":2}`)))
}
