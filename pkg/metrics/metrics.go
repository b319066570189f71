package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_events_received_total",
			Help: "Total number of inbound events handed to the router (count)",
		},
		[]string{"status"},
	)

	RoutingOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_outcomes_total",
			Help: "Total number of routing outcomes by status and reason (count)",
		},
		[]string{"status", "reason"},
	)

	RoutingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "router_processing_duration_ms",
			Help:    "End-to-end pipeline duration per inbound event in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	RouterInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "router_in_flight_events",
			Help: "Number of events currently being processed (count)",
		},
	)

	RuleMatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_matches_total",
			Help: "Total number of rule evaluations by match type and result (count)",
		},
		[]string{"match_type", "result"},
	)

	PolicyDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_denials_total",
			Help: "Total number of policy chain denials by interceptor (count)",
		},
		[]string{"interceptor"},
	)

	RateLimitDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Total number of sliding-window admission decisions (count)",
		},
		[]string{"limiter", "decision"},
	)

	ReplySendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reply_send_total",
			Help: "Total number of outbound reply attempts (count)",
		},
		[]string{"status"},
	)

	ReplySendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reply_send_duration_ms",
			Help:    "Duration of outbound reply calls in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)

	GatewayConnectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_connection_state",
			Help: "Gateway connection state (0=connecting, 1=open, 2=closing, 3=closed) (state code)",
		},
	)

	GatewayReconnectAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_reconnect_attempts_total",
			Help: "Total number of gateway reconnection attempts (count)",
		},
		[]string{"result"},
	)

	GatewayFramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_frames_total",
			Help: "Total number of frames read from the gateway (count)",
		},
		[]string{"kind"},
	)

	GatewayHeartbeatTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_heartbeat_timeouts_total",
			Help: "Total number of sessions closed for missing heartbeats (count)",
		},
	)

	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Total number of cache lookups (count)",
		},
		[]string{"cache", "result"},
	)

	OutcomeSinkWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outcome_sink_writes_total",
			Help: "Total number of routing outcome writes by sink (count)",
		},
		[]string{"sink", "status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_rate_limit_requests_total",
			Help: "Total number of admin API requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

func RegisterRouterMetrics() {
	prometheus.MustRegister(EventsReceivedTotal)
	prometheus.MustRegister(RoutingOutcomesTotal)
	prometheus.MustRegister(RoutingDuration)
	prometheus.MustRegister(RouterInFlight)
	prometheus.MustRegister(RuleMatchesTotal)
	prometheus.MustRegister(PolicyDenialsTotal)
	prometheus.MustRegister(RateLimitDecisionsTotal)
	prometheus.MustRegister(ReplySendTotal)
	prometheus.MustRegister(ReplySendDuration)
	prometheus.MustRegister(CacheRequestsTotal)
	prometheus.MustRegister(OutcomeSinkWritesTotal)
	prometheus.MustRegister(FallbackUsageTotal)
}

func RegisterGatewayMetrics() {
	prometheus.MustRegister(GatewayConnectionState)
	prometheus.MustRegister(GatewayReconnectAttemptsTotal)
	prometheus.MustRegister(GatewayFramesTotal)
	prometheus.MustRegister(GatewayHeartbeatTimeoutsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAdminMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterStorageMetrics() {
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func ObserveRoutingDuration(duration time.Duration, status string) {
	RoutingDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveReplySendDuration(duration time.Duration) {
	ReplySendDuration.Observe(float64(duration.Milliseconds()))
}

func IncRuleMatch(matchType, result string) {
	RuleMatchesTotal.WithLabelValues(matchType, result).Inc()
}

func IncPolicyDenial(interceptor string) {
	PolicyDenialsTotal.WithLabelValues(interceptor).Inc()
}

func IncRateLimitDecision(limiter string, admitted bool) {
	decision := "denied"
	if admitted {
		decision = "admitted"
	}
	RateLimitDecisionsTotal.WithLabelValues(limiter, decision).Inc()
}

func IncCacheRequest(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequestsTotal.WithLabelValues(cache, result).Inc()
}

func SetGatewayConnectionState(code int) {
	GatewayConnectionState.Set(float64(code))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
