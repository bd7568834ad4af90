package config

import "time"

// ExecutionConfig is the execution configuration named in spec §6:
// timeout, retry, seed, and concurrency cap. All four are required —
// no defaults are accepted, unlike every other config surface in this
// package.
type ExecutionConfig struct {
	MethodTimeout time.Duration `yaml:"method_timeout"`
	PhaseTimeout  time.Duration `yaml:"phase_timeout"`
	Retry         int           `yaml:"retry"`
	Seed          uint64        `yaml:"seed"`
	ConcurrencyCap int          `yaml:"concurrency_cap"`
}

// CircuitBreakerConfig governs the per-executor circuit breaker (§4.5):
// it opens after ConsecutiveFailureThreshold failures in a row and
// keeps a transition history bounded to HistoryLimit entries.
type CircuitBreakerConfig struct {
	ConsecutiveFailureThreshold int `yaml:"consecutive_failure_threshold"`
	HistoryLimit                int `yaml:"history_limit"`
}

// DefaultCircuitBreakerConfig returns the built-in circuit breaker
// defaults, overridable by pipeline.yaml.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		ConsecutiveFailureThreshold: 3,
		HistoryLimit:                100,
	}
}

// DispersionConfig overrides the default dispersion-penalty thresholds
// (pkg/bayes.DefaultDispersionThresholds) used by the aggregation cascade.
type DispersionConfig struct {
	CV  float64 `yaml:"cv"`
	Gap float64 `yaml:"gap"`
	Gini float64 `yaml:"gini"`
}

// PipelineYAMLConfig is the full structure of pipeline.yaml.
type PipelineYAMLConfig struct {
	Execution      ExecutionConfig       `yaml:"execution"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker"`
	Dispersion     *DispersionConfig     `yaml:"dispersion"`
	ArtifactsDir   string                `yaml:"artifacts_dir"`
	RetentionDays  int                   `yaml:"retention_days"`
}

// Config is the fully resolved, validated configuration a run executes
// against.
type Config struct {
	configDir string

	Execution      ExecutionConfig
	CircuitBreaker *CircuitBreakerConfig
	Dispersion     *DispersionConfig
	ArtifactsDir   string
	RetentionDays  int

	CatalogRaw  []byte
	RegistryRaw []byte
}

// ConfigDir returns the directory this configuration was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// DefaultRetentionDays is applied when pipeline.yaml omits retention_days.
const DefaultRetentionDays = 30

// DefaultArtifactsDir is applied when pipeline.yaml omits artifacts_dir.
const DefaultArtifactsDir = "./artifacts"
