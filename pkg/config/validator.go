package config

import "fmt"

// Validator validates loaded configuration comprehensively, failing
// fast at the first violation found — mirroring tarsy's
// Validator.ValidateAll ordering (foundational concerns first).
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every validation pass in dependency order.
func (v *Validator) ValidateAll() error {
	if err := v.validateExecution(); err != nil {
		return fmt.Errorf("execution config validation failed: %w", err)
	}
	if err := v.validateCircuitBreaker(); err != nil {
		return fmt.Errorf("circuit breaker validation failed: %w", err)
	}
	if err := v.validateDispersion(); err != nil {
		return fmt.Errorf("dispersion validation failed: %w", err)
	}
	if err := v.validateCatalogAndRegistry(); err != nil {
		return fmt.Errorf("catalog/registry validation failed: %w", err)
	}
	return nil
}

// validateExecution enforces spec §6: timeout, retry, seed, and
// concurrency cap are all required, with no defaults accepted.
func (v *Validator) validateExecution() error {
	e := v.cfg.Execution

	if e.MethodTimeout <= 0 {
		return NewValidationError("execution", "method_timeout",
			fmt.Errorf("%w: must be positive, got %v", ErrMissingRequiredField, e.MethodTimeout))
	}
	if e.PhaseTimeout <= 0 {
		return NewValidationError("execution", "phase_timeout",
			fmt.Errorf("%w: must be positive, got %v", ErrMissingRequiredField, e.PhaseTimeout))
	}
	if e.Retry < 0 {
		return NewValidationError("execution", "retry",
			fmt.Errorf("%w: must be non-negative, got %d", ErrInvalidValue, e.Retry))
	}
	if e.Seed == 0 {
		return NewValidationError("execution", "seed",
			fmt.Errorf("%w: seed must be explicitly set and non-zero", ErrMissingRequiredField))
	}
	if e.ConcurrencyCap < 1 {
		return NewValidationError("execution", "concurrency_cap",
			fmt.Errorf("%w: must be at least 1, got %d", ErrMissingRequiredField, e.ConcurrencyCap))
	}
	return nil
}

func (v *Validator) validateCircuitBreaker() error {
	cb := v.cfg.CircuitBreaker
	if cb == nil {
		return NewValidationError("circuit_breaker", "", fmt.Errorf("%w: configuration is nil", ErrMissingRequiredField))
	}
	if cb.ConsecutiveFailureThreshold < 1 {
		return NewValidationError("circuit_breaker", "consecutive_failure_threshold",
			fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidValue, cb.ConsecutiveFailureThreshold))
	}
	if cb.HistoryLimit < 1 {
		return NewValidationError("circuit_breaker", "history_limit",
			fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidValue, cb.HistoryLimit))
	}
	return nil
}

// validateDispersion validates override thresholds only when present
// — an absent override is valid (pkg/bayes supplies its own defaults).
func (v *Validator) validateDispersion() error {
	d := v.cfg.Dispersion
	if d == nil {
		return nil
	}
	if d.CV <= 0 {
		return NewValidationError("dispersion", "cv", fmt.Errorf("%w: must be positive, got %v", ErrInvalidValue, d.CV))
	}
	if d.Gap <= 0 {
		return NewValidationError("dispersion", "gap", fmt.Errorf("%w: must be positive, got %v", ErrInvalidValue, d.Gap))
	}
	if d.Gini <= 0 {
		return NewValidationError("dispersion", "gini", fmt.Errorf("%w: must be positive, got %v", ErrInvalidValue, d.Gini))
	}
	return nil
}

func (v *Validator) validateCatalogAndRegistry() error {
	if len(v.cfg.CatalogRaw) == 0 {
		return NewValidationError("catalog", "", fmt.Errorf("%w: catalog.json is empty", ErrMissingRequiredField))
	}
	if len(v.cfg.RegistryRaw) == 0 {
		return NewValidationError("registry", "", fmt.Errorf("%w: registry.json is empty", ErrMissingRequiredField))
	}
	return nil
}
