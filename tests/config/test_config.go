// Package config provides centralized test configuration for orca-agent-backend tests
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	test_constants "orca-agent-backend/tests/constants"
)

// Command line flags with environment variable fallback defaults
var (
	FlakeAttempts = flag.Int("flakeAttempts", getIntEnvOrDefault("FLAKE_ATTEMPTS", 0), "Number of retry attempts for flaky specs")

	// Timeout settings
	SuiteTimeout   = flag.Duration("suiteTimeout", getDurationEnvOrDefault("SUITE_TIMEOUT", 30*time.Minute), "Test suite timeout")
	TestTimeout    = flag.Duration("testTimeout", getDurationEnvOrDefault("TEST_TIMEOUT", 5*time.Minute), "Individual test timeout")
	APITimeout     = flag.Duration("apiTimeout", getDurationEnvOrDefault("API_TIMEOUT", 30*time.Second), "API request timeout")
	SessionTimeout = flag.Duration("sessionTimeout", getDurationEnvOrDefault("SESSION_TIMEOUT", 60*time.Second), "How long to poll a session for a terminal status")

	// Execution settings
	SkipSlowTests = flag.Bool("skipSlow", getBoolEnvOrDefault("SKIP_SLOW_TESTS", false), "Skip slow-running tests")

	// HTTP client settings
	RetryAttempts = flag.Int("retryAttempts", getIntEnvOrDefault("RETRY_ATTEMPTS", 3), "Number of retry attempts for API calls")
	RetryDelay    = flag.Duration("retryDelay", getDurationEnvOrDefault("RETRY_DELAY", 1*time.Second), "Delay between retries")
	MaxRetryDelay = flag.Duration("maxRetryDelay", getDurationEnvOrDefault("MAX_RETRY_DELAY", 10*time.Second), "Maximum retry delay")

	// Agent settings
	SimulationDelay = flag.Duration("simulationDelay", getDurationEnvOrDefault("TEST_SIMULATION_DELAY", 10*time.Millisecond), "Simulated agent run time used by tests")
)

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnvOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func ShouldSkipSlowTests() bool {
	return *SkipSlowTests
}

// ShouldSkipGitTests is true when git is unavailable or explicitly disabled
func ShouldSkipGitTests() bool {
	return getEnvOrDefault(test_constants.EnvSkipGitTests, "") == "true"
}
