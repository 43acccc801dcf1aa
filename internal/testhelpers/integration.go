//go:build integration
// +build integration

// Package testhelpers holds shared setup for tests that call the live
// OpenWeatherMap API. Build with -tags integration.
package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"
)

const defaultAPIURL = "https://api.openweathermap.org/data/2.5/weather"

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey  string
	APIURL  string
	Timeout time.Duration
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test when neither OPENWEATHER_API_KEY nor WEATHER_API_KEY is set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("OPENWEATHER_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("WEATHER_API_KEY")
	}
	if apiKey == "" {
		t.Skip("OPENWEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	timeout := 10 * time.Second
	if v := os.Getenv("INTEGRATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		}
	}

	return IntegrationTestConfig{
		APIKey:  apiKey,
		APIURL:  apiURL,
		Timeout: timeout,
	}
}

// Context returns a context bounded by the configured timeout, cancelled when
// the test ends.
func Context(t *testing.T, cfg IntegrationTestConfig) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	t.Cleanup(cancel)
	return ctx
}
