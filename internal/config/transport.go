package config

import (
	"fmt"
	"time"
)

// TransportConfig holds API pacing and retry settings
type TransportConfig struct {
	// APIURL is the REST base URL. Empty means api.github.com.
	APIURL string `yaml:"api_url"`

	// GraphQLURL is the GraphQL endpoint. Empty means api.github.com/graphql.
	GraphQLURL string `yaml:"graphql_url"`

	// RequestsPerSecond paces every API call
	// Default: 10, Range: 0.1-100
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the token bucket size
	// Default: 5, Range: 1-100
	Burst int `yaml:"burst"`

	// RetryMaxElapsedSeconds bounds retries of read calls; mutations are never retried
	// Default: 30, Range: 0-300 (0 = no retries)
	RetryMaxElapsedSeconds int `yaml:"retry_max_elapsed_seconds"`

	// TimeoutSeconds is the per-request HTTP timeout
	// Default: 30, Range: 1-300
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// DefaultTransportConfig returns the default transport configuration
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		RequestsPerSecond:      10,
		Burst:                  5,
		RetryMaxElapsedSeconds: 30,
		TimeoutSeconds:         30,
	}
}

// Validate checks if the configuration has valid values
func (c TransportConfig) Validate() error {
	if c.RequestsPerSecond < 0.1 || c.RequestsPerSecond > 100 {
		return fmt.Errorf("requests_per_second must be between 0.1 and 100 (got %g)", c.RequestsPerSecond)
	}
	if c.Burst < 1 || c.Burst > 100 {
		return fmt.Errorf("burst must be between 1 and 100 (got %d)", c.Burst)
	}
	if c.RetryMaxElapsedSeconds < 0 || c.RetryMaxElapsedSeconds > 300 {
		return fmt.Errorf("retry_max_elapsed_seconds must be between 0 and 300 (got %d)", c.RetryMaxElapsedSeconds)
	}
	if c.TimeoutSeconds < 1 || c.TimeoutSeconds > 300 {
		return fmt.Errorf("timeout_seconds must be between 1 and 300 (got %d)", c.TimeoutSeconds)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c TransportConfig) String() string {
	return fmt.Sprintf(
		"TransportConfig{APIURL: %q, GraphQLURL: %q, RPS: %g, Burst: %d, RetryMaxElapsed: %ds, Timeout: %ds}",
		c.APIURL, c.GraphQLURL, c.RequestsPerSecond, c.Burst, c.RetryMaxElapsedSeconds, c.TimeoutSeconds,
	)
}

// RetryMaxElapsed returns the retry budget as a time.Duration
func (c TransportConfig) RetryMaxElapsed() time.Duration {
	return time.Duration(c.RetryMaxElapsedSeconds) * time.Second
}

// Timeout returns the request timeout as a time.Duration
func (c TransportConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
