package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			MongoDB: MongoDBConfig{URI: "mongodb://localhost:27017", Database: "courier"},
		},
		Broker: BrokerConfig{URL: "tcp://localhost:1883", QoS: 1},
		Routing: RoutingConfig{
			Mode:         ModeRules,
			SystemKey:    "system-key",
			SystemSecret: "system-secret",
		},
	}
}

func TestValidateStaticOK(t *testing.T) {
	require.NoError(t, ValidateStatic(validConfig()))

	cfg := validConfig()
	cfg.Routing.Mode = ModeIntegrations
	require.NoError(t, ValidateStatic(cfg))
}

func TestValidateStatic(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"missing mongodb uri", func(c *Config) { c.Database.MongoDB.URI = "" }},
		{"missing mongodb database", func(c *Config) { c.Database.MongoDB.Database = "" }},
		{"redis enabled without host", func(c *Config) { c.Database.Redis.Enabled = true }},
		{"missing broker url", func(c *Config) { c.Broker.URL = "" }},
		{"broker url without scheme", func(c *Config) { c.Broker.URL = "localhost:1883" }},
		{"qos out of range", func(c *Config) { c.Broker.QoS = 3 }},
		{"unknown routing mode", func(c *Config) { c.Routing.Mode = "pipelines" }},
		{"missing system key", func(c *Config) { c.Routing.SystemKey = "" }},
		{"missing system secret", func(c *Config) { c.Routing.SystemSecret = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, ValidateStatic(cfg))
		})
	}
}

func TestValidateBridge(t *testing.T) {
	base := func() *Config {
		cfg := validConfig()
		cfg.Bridge = BridgeConfig{
			Enabled:     true,
			Endpoint:    "ssl://external:8883",
			Certificate: "/etc/courier/client.crt",
			PrivateKey:  "/etc/courier/client.key",
			CA:          "/etc/courier/ca.crt",
			Reconnect:   ReconnectConfig{Multiplier: 2.0},
		}
		return cfg
	}

	require.NoError(t, ValidateStatic(base()))

	// Disabled bridge needs nothing.
	cfg := validConfig()
	cfg.Bridge = BridgeConfig{Enabled: false}
	require.NoError(t, ValidateStatic(cfg))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing endpoint", func(c *Config) { c.Bridge.Endpoint = "" }},
		{"missing certificate", func(c *Config) { c.Bridge.Certificate = "" }},
		{"missing private key", func(c *Config) { c.Bridge.PrivateKey = "" }},
		{"missing ca", func(c *Config) { c.Bridge.CA = "" }},
		{"multiplier below one", func(c *Config) { c.Bridge.Reconnect.Multiplier = 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, ValidateStatic(cfg))
		})
	}
}
