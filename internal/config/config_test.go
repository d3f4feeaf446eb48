// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_IsValid(t *testing.T) {
	cfg := NewDefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.6, cfg.Evolution.FitnessWeight)
	assert.Equal(t, 0.4, cfg.Evolution.NoveltyWeight)
	assert.Equal(t, 0.7, cfg.Evolution.ConfidenceCutoff)
	assert.Equal(t, 7.0, cfg.Evolution.ReviewScoreFloor)
	assert.Equal(t, 500, cfg.Journal.MaxEntries)
	assert.Equal(t, 200, cfg.Archive.Capacity)
	assert.Equal(t, 5, cfg.Archive.KNeighbors)
	assert.Equal(t, 2*time.Minute, cfg.Evolution.OracleTimeout)
}

func TestNewDefaultConfig_DistinctOracleRoles(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.NotEqual(t, cfg.Oracle.Proposer, cfg.Oracle.Evaluator)
	assert.Contains(t, cfg.Oracle.Models, cfg.Oracle.Proposer)
	assert.Contains(t, cfg.Oracle.Models, cfg.Oracle.Evaluator)
	assert.NotEqual(t, cfg.Oracle.Models[cfg.Oracle.Proposer].Provider,
		cfg.Oracle.Models[cfg.Oracle.Evaluator].Provider,
		"the default roles ride different client stacks")
}

func TestValidate_RejectsSharedOracleRole(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Oracle.Evaluator = cfg.Oracle.Proposer

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "distinct")
}

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative weight", func(c *Config) { c.Evolution.FitnessWeight = -0.1 }},
		{"both weights zero", func(c *Config) { c.Evolution.FitnessWeight = 0; c.Evolution.NoveltyWeight = 0 }},
		{"confidence above one", func(c *Config) { c.Evolution.ConfidenceCutoff = 1.5 }},
		{"function floor zero", func(c *Config) { c.Evolution.FunctionCountFloor = 0 }},
		{"size bound one", func(c *Config) { c.Evolution.SizeDeltaBound = 1.0 }},
		{"review floor above ten", func(c *Config) { c.Evolution.ReviewScoreFloor = 11 }},
		{"zero timeout", func(c *Config) { c.Evolution.OracleTimeout = 0 }},
		{"zero journal cap", func(c *Config) { c.Journal.MaxEntries = 0 }},
		{"zero archive capacity", func(c *Config) { c.Archive.Capacity = 0 }},
		{"missing proposer model", func(c *Config) { delete(c.Oracle.Models, c.Oracle.Proposer) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewConfigFromViper_OverridesAndEnvKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key-123")

	v := viper.New()
	SetDefaults(v)
	v.Set("evolution.confidence_cutoff", 0.5)
	v.Set("evolution.target_files", []string{"a.go", "b.go"})

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Evolution.ConfidenceCutoff)
	assert.Equal(t, []string{"a.go", "b.go"}, cfg.Evolution.TargetFiles)
	assert.Equal(t, "test-key-123", cfg.Oracle.Models[cfg.Oracle.Proposer].APIKey)
	assert.Equal(t, "test-key-123", cfg.Oracle.Models[cfg.Oracle.Evaluator].APIKey)
}

func TestNewConfigFromViper_RejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("evolution.size_delta_bound", 2.0)

	_, err := NewConfigFromViper(v)

	assert.Error(t, err)
}
