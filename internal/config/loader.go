package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("routing.mode", ModeRules)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("broker.qos", 0)
	viper.SetDefault("broker.connect_timeout", "10s")
	viper.SetDefault("bridge.reconnect.initial_interval", "1s")
	viper.SetDefault("bridge.reconnect.max_interval", "5m")
	viper.SetDefault("bridge.reconnect.multiplier", 2.0)
	viper.SetDefault("logging.level", "info")
}

func bindEnvVariables() {
	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("broker.url", "BROKER_URL")
	viper.BindEnv("broker.client_id", "BROKER_CLIENT_ID")

	viper.BindEnv("queue.kafka.brokers", "QUEUE_KAFKA_BROKERS")

	viper.BindEnv("routing.mode", "ROUTING_MODE")
	viper.BindEnv("routing.aliases", "ROUTING_ALIASES")
	viper.BindEnv("routing.system_key", "ROUTING_SYSTEM_KEY")
	viper.BindEnv("routing.system_secret", "ROUTING_SYSTEM_SECRET")

	viper.BindEnv("bridge.enabled", "BRIDGE_ENABLED")
	viper.BindEnv("bridge.endpoint", "BRIDGE_ENDPOINT")
	viper.BindEnv("bridge.aliases", "BRIDGE_ALIASES")
	viper.BindEnv("bridge.certificate", "BRIDGE_CERTIFICATE")
	viper.BindEnv("bridge.private_key", "BRIDGE_PRIVATE_KEY")
	viper.BindEnv("bridge.ca", "BRIDGE_CA")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("QUEUE_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Queue.Kafka.Brokers = brokers
		}
	}

	return nil
}
