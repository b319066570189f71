package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultMongoDBName   = "replybot"
	PoliciesCollection   = "policies"
	RoutingLogsTableName = "routing_logs"
)

// Shared-store key prefixes. The rate-limit prefix is followed by either
// "sender:{id}" for the global per-sender limiter or
// "rule:{rule_id}:{scope}:{subject}" for policy limits.
const (
	KeyPrefixRateLimit       = "ratelimit:"
	KeyPrefixSenderRateLimit = KeyPrefixRateLimit + "sender:"
	KeyPrefixRuleRateLimit   = KeyPrefixRateLimit + "rule:"
	KeyPrefixCooldown        = "cooldown:"
	KeyPrefixRole            = "role:"
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	SinkKafka    = "kafka"
	SinkPostgres = "postgres"
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)
