package models

import "time"

// ConfigUpdateEvent announces a change made to rules, policies or
// conversations by the administrative surface.
type ConfigUpdateEvent struct {
	EventType      string    `json:"event_type"`
	RuleID         string    `json:"rule_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Action         string    `json:"action"`
	Timestamp      time.Time `json:"timestamp"`
	ChangedBy      string    `json:"changed_by,omitempty"`
}

const (
	EventTypeRuleUpdated         = "rule_updated"
	EventTypePolicyUpdated       = "policy_updated"
	EventTypeConversationUpdated = "conversation_updated"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
	ActionReload = "reload"
)
