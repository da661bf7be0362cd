package config

import (
	"fmt"
	"os"
	"strconv"
)

// RunOptions holds the settings for a single harness run. Flags take
// precedence over environment variables; Validate is called before any
// AWS client is constructed.
type RunOptions struct {
	StackName     string // deployment stack exposing bucket/role outputs
	TestPackage   string // Go package whose test binary is shipped
	PayloadPath   string // optional JSON file passed to the invocation
	OutputDir     string // where result.json and run.log are written
	KeepResources bool   // skip cleanup (debugging)

	// Fixed-interval polling budgets. The interval is constant; only the
	// attempt caps are tunable.
	ActivationAttempts int
	LogAttempts        int
	StreamAttempts     int
}

// DefaultRunOptions returns options populated from the environment
func DefaultRunOptions() RunOptions {
	return RunOptions{
		StackName:          GetStackName(),
		TestPackage:        getEnvOrDefault("SKYTEST_PACKAGE", "./..."),
		OutputDir:          getEnvOrDefault("SKYTEST_OUTPUT_DIR", "."),
		ActivationAttempts: getEnvIntOrDefault("SKYTEST_ACTIVATION_ATTEMPTS", 30),
		LogAttempts:        getEnvIntOrDefault("SKYTEST_LOG_ATTEMPTS", 20),
		StreamAttempts:     getEnvIntOrDefault("SKYTEST_STREAM_ATTEMPTS", 5),
	}
}

// Validate checks that a run can proceed
func (o RunOptions) Validate() error {
	if o.StackName == "" {
		return fmt.Errorf("stack name is required (set SKYTEST_STACK or pass -stack)")
	}
	if o.ActivationAttempts <= 0 || o.LogAttempts <= 0 || o.StreamAttempts <= 0 {
		return fmt.Errorf("polling attempt budgets must be positive")
	}
	return nil
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns an integer environment variable or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
