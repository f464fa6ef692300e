package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		StorageBackend:     "memory",
		RoutingPolicy:      "broadcast",
		MachineID:          1,
		RateLimitPerSender: 10,
		RateLimitBurst:     20,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	c := validConfig()
	c.StorageBackend = "carrier-pigeon"
	assert.Error(t, c.Validate())
}

func TestValidatePostgresRequiresDSN(t *testing.T) {
	c := validConfig()
	c.StorageBackend = "postgres"
	assert.Error(t, c.Validate())

	c.PostgresDSN = "postgres://localhost/bus"
	assert.NoError(t, c.Validate())
}

func TestValidateDirectOrFallbackRequiresFallbackID(t *testing.T) {
	c := validConfig()
	c.RoutingPolicy = "direct_or_fallback"
	assert.Error(t, c.Validate())

	c.FallbackClientID = "R"
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsMachineIDAbove8Bits(t *testing.T) {
	c := validConfig()
	c.MachineID = 256
	assert.Error(t, c.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	c := validConfig()
	c.LogLevel = "verbose"
	assert.Error(t, c.Validate())
}
