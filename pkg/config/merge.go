package config

import (
	"fmt"

	"dario.cat/mergo"
)

// mergeCircuitBreaker merges user into the built-in defaults,
// returning the defaults unchanged if user is nil, the way tarsy's
// loader merges user Queue config on top of DefaultQueueConfig.
func mergeCircuitBreaker(user *CircuitBreakerConfig) (*CircuitBreakerConfig, error) {
	merged := DefaultCircuitBreakerConfig()
	if user == nil {
		return merged, nil
	}
	if err := mergo.Merge(merged, user, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge circuit breaker config: %w", err)
	}
	return merged, nil
}

// mergeDispersion merges user-provided dispersion thresholds on top of
// nil (absent) defaults — dispersion thresholds have their own
// built-in defaults in pkg/bayes, so an absent override here simply
// means "use pkg/bayes.DefaultDispersionThresholds at call time".
func mergeDispersion(user *DispersionConfig) *DispersionConfig {
	return user
}
