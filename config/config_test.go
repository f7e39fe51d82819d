package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "options-engine", cfg.App.Name)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "pricing.requests", cfg.Kafka.Topics.PricingRequests)
	assert.Equal(t, "pricing.results", cfg.Kafka.Topics.PricingResults)

	assert.Equal(t, -0.10, cfg.Pricing.MinRate)
	assert.Equal(t, 0.50, cfg.Pricing.MaxRate)
	assert.Equal(t, 5.0, cfg.Pricing.MaxVolatility)
	assert.Equal(t, 0.20, cfg.Pricing.IVConsistencyThreshold)

	assert.Equal(t, 1e-4, cfg.Solver.Tolerance)
	assert.Equal(t, 100, cfg.Solver.MaxIterations)
	assert.Equal(t, []float64{0.20, 0.10, 0.50, 0.05, 1.00}, cfg.Solver.FallbackGuesses)

	assert.Equal(t, 8, cfg.Worker.Workers)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("OPTIONS_API_PORT", "9100")
	t.Setenv("OPTIONS_APP_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.API.Port)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}
