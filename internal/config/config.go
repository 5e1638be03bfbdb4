package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Routing  RoutingConfig  `mapstructure:"routing"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// BrokerConfig is the connection to the local MQTT broker whose auth plugin
// calls back into the hook server.
type BrokerConfig struct {
	URL            string        `mapstructure:"url"`
	ClientID       string        `mapstructure:"client_id"`
	QoS            int           `mapstructure:"qos"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type QueueConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RoutingConfig selects the processing mode and carries the reserved system
// credential used by the message router itself. Aliases selects whether topic
// scope segments resolve as aliases or as raw ids.
type RoutingConfig struct {
	Mode         string `mapstructure:"mode"`
	Aliases      bool   `mapstructure:"aliases"`
	SystemKey    string `mapstructure:"system_key"`
	SystemSecret string `mapstructure:"system_secret"`
}

type BridgeConfig struct {
	Enabled     bool            `mapstructure:"enabled"`
	Endpoint    string          `mapstructure:"endpoint"`
	ClientID    string          `mapstructure:"client_id"`
	Aliases     bool            `mapstructure:"aliases"`
	Certificate string          `mapstructure:"certificate"`
	PrivateKey  string          `mapstructure:"private_key"`
	CA          string          `mapstructure:"ca"`
	Reconnect   ReconnectConfig `mapstructure:"reconnect"`
}

type ReconnectConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
