package config

import (
	"fmt"
	"strings"
)

// Routing mode values for RoutingConfig.Mode.
const (
	ModeRules        = "rules"
	ModeIntegrations = "integrations"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateRouting(cfg.Routing); err != nil {
		errors = append(errors, err)
	}

	if err := validateBridge(cfg.Bridge); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.MongoDB.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "mongodb uri is required",
		}
	}

	if cfg.MongoDB.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "mongodb database name is required",
		}
	}

	if cfg.Redis.Enabled && cfg.Redis.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "redis host is required when redis is enabled",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.URL == "" {
		return &ValidationError{
			Field:   "broker.url",
			Message: "broker url is required",
		}
	}

	if !strings.Contains(cfg.URL, "://") {
		return &ValidationError{
			Field:   "broker.url",
			Message: fmt.Sprintf("broker url must include a scheme (tcp://, ssl://, ws://), got %q", cfg.URL),
		}
	}

	if cfg.QoS < 0 || cfg.QoS > 2 {
		return &ValidationError{
			Field:   "broker.qos",
			Message: fmt.Sprintf("qos must be between 0 and 2, got %d", cfg.QoS),
		}
	}

	return nil
}

func validateRouting(cfg RoutingConfig) error {
	switch cfg.Mode {
	case ModeRules, ModeIntegrations:
	default:
		return &ValidationError{
			Field:   "routing.mode",
			Message: fmt.Sprintf("mode must be %q or %q, got %q", ModeRules, ModeIntegrations, cfg.Mode),
		}
	}

	if cfg.SystemKey == "" || cfg.SystemSecret == "" {
		return &ValidationError{
			Field:   "routing.system_key",
			Message: "system credential pair is required",
		}
	}

	return nil
}

func validateBridge(cfg BridgeConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.Endpoint == "" {
		return &ValidationError{
			Field:   "bridge.endpoint",
			Message: "endpoint is required when the bridge is enabled",
		}
	}

	for field, value := range map[string]string{
		"bridge.certificate": cfg.Certificate,
		"bridge.private_key": cfg.PrivateKey,
		"bridge.ca":          cfg.CA,
	} {
		if value == "" {
			return &ValidationError{
				Field:   field,
				Message: "path is required when the bridge is enabled",
			}
		}
	}

	if cfg.Reconnect.Multiplier < 1 {
		return &ValidationError{
			Field:   "bridge.reconnect.multiplier",
			Message: fmt.Sprintf("multiplier must be >= 1, got %v", cfg.Reconnect.Multiplier),
		}
	}

	return nil
}
