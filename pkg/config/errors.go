// Package config loads pipeline.yaml (execution configuration),
// catalog.json (the canonical method catalog) and registry.json (the
// calibration registry), merges built-in defaults with user overrides,
// and validates the result before any phase may run.
//
// Grounded on tarsy's pkg/config: the tarsy.yaml/llm-providers.yaml
// split loader (loader.go), its errors.go sentinel+wrapped-struct error
// style, its envexpand.go environment-variable expansion, and its
// validator.go fail-fast validation pass.
package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNotFound indicates a required configuration file is missing.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidYAML indicates YAML parsing failed.
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrInvalidJSON indicates catalog.json or registry.json failed to parse.
	ErrInvalidJSON = errors.New("invalid JSON syntax")

	// ErrMissingRequiredField indicates a required execution-config field
	// was absent. Execution configuration accepts no defaults (spec
	// §6): timeout, retry, seed, and concurrency must all be set.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrInvalidValue indicates a field has an out-of-range or malformed value.
	ErrInvalidValue = errors.New("invalid field value")

	// ErrHashMismatch indicates a content hash recorded alongside a
	// catalog/registry file does not match the file's computed hash.
	ErrHashMismatch = errors.New("content hash mismatch")
)

// ValidationError wraps a configuration validation failure with the
// component and field it was found in.
type ValidationError struct {
	Component string
	Field     string
	Err       error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field %q: %v", e.Component, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError constructs a ValidationError.
func NewValidationError(component, field string, err error) *ValidationError {
	return &ValidationError{Component: component, Field: field, Err: err}
}

// LoadError wraps a configuration load failure with the file it came from.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError constructs a LoadError.
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}
