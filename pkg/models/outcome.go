package models

import "time"

type OutcomeStatus string

const (
	OutcomeReplied      OutcomeStatus = "replied"
	OutcomeSendFailed   OutcomeStatus = "send_failed"
	OutcomeSkipped      OutcomeStatus = "skipped"
	OutcomePolicyLogged OutcomeStatus = "policy_logged"
)

const (
	SkipReasonRateLimited = "rate limited"
	SkipReasonNoRule      = "no rule matched"
	SkipReasonPanic       = "internal error"
)

// PolicyFailure names the interceptor that denied a message.
type PolicyFailure struct {
	Interceptor string `json:"interceptor"`
	Reason      string `json:"reason"`
}

// RoutingOutcome is the per-message record handed to the outcome log.
type RoutingOutcome struct {
	ID             string         `json:"id"`
	MessageID      string         `json:"message_id"`
	ConversationID string         `json:"conversation_id"`
	SenderID       string         `json:"sender_id"`
	MatchedRuleID  string         `json:"matched_rule_id,omitempty"`
	ReplyText      string         `json:"reply_text,omitempty"`
	SendSucceeded  *bool          `json:"send_succeeded,omitempty"`
	Status         OutcomeStatus  `json:"status"`
	SkipReason     string         `json:"skip_reason,omitempty"`
	PolicyFailure  *PolicyFailure `json:"policy_failure,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	Duration       time.Duration  `json:"duration_ns"`
}

// Summary renders the outcome the way it appears in logs, e.g.
// "skipped: policy denied (TimeWindow)".
func (o *RoutingOutcome) Summary() string {
	switch o.Status {
	case OutcomeSkipped, OutcomePolicyLogged:
		return string(o.Status) + ": " + o.SkipReason
	default:
		return string(o.Status)
	}
}
