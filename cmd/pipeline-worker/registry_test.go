package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telbill/internal/config"
	"telbill/internal/pipeline"
)

func testConfig() *config.Config {
	return &config.Config{
		Billing: config.BillingConfig{StandingCharge: "0.36", CallCharge: "0.09"},
	}
}

func TestBuildRegistry(t *testing.T) {
	registry, err := buildRegistry(testConfig(), serviceDeps{})
	require.NoError(t, err)

	assert.Equal(t, 3, registry.Len())
	assert.ElementsMatch(t,
		[]string{"registry-service", "registry-service-done", "call-service-done"},
		registry.Triggers(),
	)
}

func TestBuildRegistry_MissingRate(t *testing.T) {
	cfg := testConfig()
	cfg.Billing.CallCharge = ""

	_, err := buildRegistry(cfg, serviceDeps{})
	var cfgErr *pipeline.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "call_charge", cfgErr.Field)
}

func TestBuildRegistry_BadRule(t *testing.T) {
	cfg := testConfig()
	cfg.Ingest.Rules = []config.IngestRuleConfig{{Name: "broken", Field: "source", Expression: "source +"}}

	_, err := buildRegistry(cfg, serviceDeps{})
	assert.Error(t, err)
}

func TestSelectTriggers(t *testing.T) {
	registry, err := buildRegistry(testConfig(), serviceDeps{})
	require.NoError(t, err)

	all, err := selectTriggers(registry, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := selectTriggers(registry, []string{"call-service-done"})
	require.NoError(t, err)
	assert.Equal(t, []string{"call-service-done"}, some)

	_, err = selectTriggers(registry, []string{"bill-service-done"})
	assert.ErrorIs(t, err, pipeline.ErrUnknownTrigger)
}
