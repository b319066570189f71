package models

import "time"

// InboundEvent is a group chat message decoded from a gateway frame.
// It is created once per frame and never mutated afterwards.
type InboundEvent struct {
	ConversationID    string    `json:"conversation_id"`
	SenderID          string    `json:"sender_id"`
	SenderDisplayName string    `json:"sender_display_name"`
	MessageText       string    `json:"message_text"`
	MessageID         string    `json:"message_id"`
	Timestamp         time.Time `json:"timestamp"`
	SelfID            string    `json:"self_id,omitempty"`
}

// ISOWeekday numbers t's weekday from 1 (Monday) to 7 (Sunday), the
// convention used by time window policies and rule conditions.
func ISOWeekday(t time.Time) int {
	if wd := t.Weekday(); wd != time.Sunday {
		return int(wd)
	}
	return 7
}
