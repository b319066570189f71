package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Gateway        GatewayConfig
	Database       DatabaseConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Rules          RulesConfig
	Policy         PolicyConfig
	Router         RouterConfig
	OutcomeLog     OutcomeLogConfig `mapstructure:"outcome_log"`
	Admin          AdminConfig
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GatewayConfig describes the OneBot 11 endpoints: the reverse WebSocket for
// events and the HTTP API for actions.
type GatewayConfig struct {
	URL                  string          `mapstructure:"url"`
	APIURL               string          `mapstructure:"api_url"`
	AccessToken          string          `mapstructure:"access_token"`
	HeartbeatInterval    time.Duration   `mapstructure:"heartbeat_interval"`
	HeartbeatTimeout     time.Duration   `mapstructure:"heartbeat_timeout"`
	HandshakeTimeout     time.Duration   `mapstructure:"handshake_timeout"`
	ReconnectDelays      []time.Duration `mapstructure:"reconnect_delays"`
	MaxReconnectAttempts int             `mapstructure:"max_reconnect_attempts"`
	ExitOnExhausted      bool            `mapstructure:"exit_on_exhausted"`
	SelfID               string          `mapstructure:"self_id"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig
	Redis         RedisConfig
	MongoDB       MongoDBConfig
	RunMigrations bool `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers           []string    `mapstructure:"brokers"`
	GroupID           string      `mapstructure:"group_id"`
	OutcomeTopic      string      `mapstructure:"outcome_topic"`
	ConfigUpdateTopic string      `mapstructure:"config_update_topic"`
	Retry             RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RulesConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type PolicyConfig struct {
	Timezone     string        `mapstructure:"timezone"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	RoleCacheTTL time.Duration `mapstructure:"role_cache_ttl"`
}

type RouterConfig struct {
	Workers     int            `mapstructure:"workers"`
	QueueSize   int            `mapstructure:"queue_size"`
	SendTimeout time.Duration  `mapstructure:"send_timeout"`
	RateLimit   WindowConfig   `mapstructure:"rate_limit"`
	Fallback    FallbackConfig `mapstructure:"fallback"`
}

type WindowConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

type FallbackConfig struct {
	OnStoreError string `mapstructure:"on_store_error"` // "allow" (default) or "deny"
}

type OutcomeLogConfig struct {
	Sinks      []string `mapstructure:"sinks"` // "kafka", "postgres"
	BufferSize int      `mapstructure:"buffer_size"`
}

type AdminConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
