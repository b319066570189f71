package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

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
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 10*time.Second)

	viper.SetDefault("gateway.heartbeat_interval", 5*time.Second)
	viper.SetDefault("gateway.heartbeat_timeout", 15*time.Second)
	viper.SetDefault("gateway.handshake_timeout", 10*time.Second)
	viper.SetDefault("gateway.max_reconnect_attempts", 3)
	viper.SetDefault("gateway.exit_on_exhausted", true)

	viper.SetDefault("database.redis.key_prefix", "replybot:")
	viper.SetDefault("database.run_migrations", true)

	viper.SetDefault("broker.type", "kafka")
	viper.SetDefault("broker.kafka.outcome_topic", "routing_outcomes")
	viper.SetDefault("broker.kafka.config_update_topic", "reply_config_updates")
	viper.SetDefault("broker.kafka.group_id", "router-service")
	viper.SetDefault("broker.kafka.retry.max_attempts", 3)
	viper.SetDefault("broker.kafka.retry.initial_interval", 100*time.Millisecond)
	viper.SetDefault("broker.kafka.retry.max_interval", 5*time.Second)
	viper.SetDefault("broker.kafka.retry.multiplier", 2.0)

	viper.SetDefault("logging.level", "info")

	viper.SetDefault("rules.cache_ttl", 60*time.Second)
	viper.SetDefault("policy.cache_ttl", 60*time.Second)
	viper.SetDefault("policy.role_cache_ttl", 5*time.Minute)

	viper.SetDefault("router.workers", 32)
	viper.SetDefault("router.queue_size", 1024)
	viper.SetDefault("router.send_timeout", 10*time.Second)
	viper.SetDefault("router.rate_limit.window_seconds", 5)
	viper.SetDefault("router.rate_limit.max_requests", 2)
	viper.SetDefault("router.fallback.on_store_error", "allow")

	viper.SetDefault("outcome_log.buffer_size", 1024)

	viper.SetDefault("admin.rate_limit.enabled", true)
	viper.SetDefault("admin.rate_limit.rps", 10.0)
	viper.SetDefault("admin.rate_limit.burst", 20)
	viper.SetDefault("admin.rate_limit.cleanup_interval", 300)
	viper.SetDefault("admin.rate_limit.max_age", 600)
}

func bindEnvVariables() {
	viper.BindEnv("gateway.url", "GATEWAY_URL")
	viper.BindEnv("gateway.api_url", "GATEWAY_API_URL")
	viper.BindEnv("gateway.access_token", "GATEWAY_ACCESS_TOKEN")
	viper.BindEnv("gateway.self_id", "GATEWAY_SELF_ID")

	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.outcome_topic", "BROKER_KAFKA_OUTCOME_TOPIC")
	viper.BindEnv("broker.kafka.config_update_topic", "BROKER_KAFKA_CONFIG_UPDATE_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if sinksEnv := viper.GetString("OUTCOME_LOG_SINKS"); sinksEnv != "" {
		sinks := strings.Split(sinksEnv, ",")
		for i := range sinks {
			sinks[i] = strings.TrimSpace(sinks[i])
		}
		cfg.OutcomeLog.Sinks = sinks
	}

	if len(cfg.Gateway.ReconnectDelays) == 0 {
		cfg.Gateway.ReconnectDelays = DefaultReconnectDelays()
	}

	return nil
}

// DefaultReconnectDelays is the delay sequence applied between consecutive
// reconnection attempts; the last value repeats.
func DefaultReconnectDelays() []time.Duration {
	return []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		60 * time.Second,
	}
}
