package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading: load the
// three documents, expand env vars, merge defaults, validate.
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized successfully",
		"concurrency_cap", cfg.Execution.ConcurrencyCap,
		"retry", cfg.Execution.Retry)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	pipelineCfg, err := loader.loadPipelineYAML()
	if err != nil {
		return nil, NewLoadError("pipeline.yaml", err)
	}

	catalogRaw, err := loader.loadRawFile("catalog.json")
	if err != nil {
		return nil, NewLoadError("catalog.json", err)
	}

	registryRaw, err := loader.loadRawFile("registry.json")
	if err != nil {
		return nil, NewLoadError("registry.json", err)
	}

	circuitBreaker, err := mergeCircuitBreaker(pipelineCfg.CircuitBreaker)
	if err != nil {
		return nil, err
	}

	artifactsDir := pipelineCfg.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = DefaultArtifactsDir
	}
	retentionDays := pipelineCfg.RetentionDays
	if retentionDays == 0 {
		retentionDays = DefaultRetentionDays
	}

	return &Config{
		configDir:      configDir,
		Execution:      pipelineCfg.Execution,
		CircuitBreaker: circuitBreaker,
		Dispersion:     mergeDispersion(pipelineCfg.Dispersion),
		ArtifactsDir:   artifactsDir,
		RetentionDays:  retentionDays,
		CatalogRaw:     catalogRaw,
		RegistryRaw:    registryRaw,
	}, nil
}

func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

// loadRawFile reads a content-addressed JSON document (catalog.json,
// registry.json) verbatim, without an env-var-expansion or YAML
// round-trip, so its bytes remain byte-identical to what the hash
// recorded in the VerificationManifest was computed over.
func (l *configLoader) loadRawFile(filename string) ([]byte, error) {
	path := filepath.Join(l.configDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}
	return data, nil
}

func (l *configLoader) loadPipelineYAML() (*PipelineYAMLConfig, error) {
	var cfg PipelineYAMLConfig
	if err := l.loadYAML("pipeline.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HashFile returns the hex SHA-256 digest of raw, used for content
// hashes such as the manifest's pipeline_hash.
func HashFile(raw []byte) string {
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%x", sum[:])
}
