package config

import (
	"fmt"
	"strings"
	"time"
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

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateGateway(cfg.Gateway); err != nil {
		errors = append(errors, err)
	}

	if err := validateRouter(cfg.Router); err != nil {
		errors = append(errors, err)
	}

	if err := validatePolicy(cfg.Policy); err != nil {
		errors = append(errors, err)
	}

	if err := validateOutcomeLog(cfg.OutcomeLog); err != nil {
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

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if cfg.Type == "" {
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	}

	switch cfg.Type {
	case "kafka":
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.Retry.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.Retry.InitialInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval < 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.Retry.MaxInterval > 0 && cfg.Retry.InitialInterval > 0 && cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		return &ValidationError{
			Field:   "broker.kafka.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Retry.Multiplier <= 0 {
		return &ValidationError{
			Field:   "broker.kafka.retry.multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validateGateway(cfg GatewayConfig) error {
	if cfg.URL == "" {
		return &ValidationError{
			Field:   "gateway.url",
			Message: "gateway WebSocket URL is required",
		}
	}

	if !strings.HasPrefix(cfg.URL, "ws://") && !strings.HasPrefix(cfg.URL, "wss://") {
		return &ValidationError{
			Field:   "gateway.url",
			Message: "gateway URL must start with ws:// or wss://",
		}
	}

	if cfg.APIURL != "" && !strings.HasPrefix(cfg.APIURL, "http://") && !strings.HasPrefix(cfg.APIURL, "https://") {
		return &ValidationError{
			Field:   "gateway.api_url",
			Message: "gateway API URL must start with http:// or https://",
		}
	}

	if cfg.HeartbeatInterval <= 0 {
		return &ValidationError{
			Field:   "gateway.heartbeat_interval",
			Message: "heartbeat interval must be positive",
		}
	}

	if cfg.HeartbeatTimeout <= cfg.HeartbeatInterval {
		return &ValidationError{
			Field:   "gateway.heartbeat_timeout",
			Message: "heartbeat timeout must be greater than heartbeat interval",
		}
	}

	if cfg.MaxReconnectAttempts < 1 {
		return &ValidationError{
			Field:   "gateway.max_reconnect_attempts",
			Message: "at least one reconnection attempt is required",
		}
	}

	for i, d := range cfg.ReconnectDelays {
		if d <= 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("gateway.reconnect_delays[%d]", i),
				Message: "reconnect delay must be positive",
			}
		}
	}

	return nil
}

func validateRouter(cfg RouterConfig) error {
	if cfg.Workers < 1 {
		return &ValidationError{
			Field:   "router.workers",
			Message: fmt.Sprintf("workers must be at least 1, got %d", cfg.Workers),
		}
	}

	if cfg.QueueSize < 1 {
		return &ValidationError{
			Field:   "router.queue_size",
			Message: fmt.Sprintf("queue size must be at least 1, got %d", cfg.QueueSize),
		}
	}

	if cfg.SendTimeout <= 0 {
		return &ValidationError{
			Field:   "router.send_timeout",
			Message: "send timeout must be positive",
		}
	}

	if cfg.RateLimit.WindowSeconds < 1 {
		return &ValidationError{
			Field:   "router.rate_limit.window_seconds",
			Message: "window must be at least one second",
		}
	}

	if cfg.RateLimit.MaxRequests < 1 {
		return &ValidationError{
			Field:   "router.rate_limit.max_requests",
			Message: "max_requests must be at least 1",
		}
	}

	validOnError := map[string]bool{
		"allow": true, "deny": true,
	}
	if cfg.Fallback.OnStoreError != "" && !validOnError[strings.ToLower(cfg.Fallback.OnStoreError)] {
		return &ValidationError{
			Field:   "router.fallback.on_store_error",
			Message: fmt.Sprintf("invalid on_store_error value: %s (valid: allow, deny)", cfg.Fallback.OnStoreError),
		}
	}

	return nil
}

func validatePolicy(cfg PolicyConfig) error {
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return &ValidationError{
				Field:   "policy.timezone",
				Message: fmt.Sprintf("unknown timezone %q: %v", cfg.Timezone, err),
			}
		}
	}

	if cfg.CacheTTL < 0 {
		return &ValidationError{
			Field:   "policy.cache_ttl",
			Message: "cache TTL must be non-negative",
		}
	}

	return nil
}

func validateOutcomeLog(cfg OutcomeLogConfig) error {
	validSinks := map[string]bool{
		"kafka": true, "postgres": true,
	}
	for i, sink := range cfg.Sinks {
		if !validSinks[strings.ToLower(sink)] {
			return &ValidationError{
				Field:   fmt.Sprintf("outcome_log.sinks[%d]", i),
				Message: fmt.Sprintf("unknown sink: %s (valid: kafka, postgres)", sink),
			}
		}
	}

	if cfg.BufferSize < 0 {
		return &ValidationError{
			Field:   "outcome_log.buffer_size",
			Message: "buffer size must be non-negative",
		}
	}

	return nil
}
