package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"replybot/pkg/models"
)

// Decoder turns a raw frame into a chat event. A nil event with a nil
// error means the frame is valid but not a chat message.
type Decoder interface {
	Decode(data []byte) (*models.InboundEvent, error)
}

// OneBotDecoder understands OneBot 11 group message events. Meta events
// (heartbeat, lifecycle), notices, requests, private messages and action
// responses are ignored.
type OneBotDecoder struct{}

type oneBotFrame struct {
	PostType    string       `json:"post_type"`
	MessageType string       `json:"message_type"`
	Time        int64        `json:"time"`
	SelfID      json.Number  `json:"self_id"`
	GroupID     json.Number  `json:"group_id"`
	UserID      json.Number  `json:"user_id"`
	MessageID   json.Number  `json:"message_id"`
	RawMessage  string       `json:"raw_message"`
	Sender      oneBotSender `json:"sender"`
}

type oneBotSender struct {
	Nickname string `json:"nickname"`
	Card     string `json:"card"`
}

func (OneBotDecoder) Decode(data []byte) (*models.InboundEvent, error) {
	var frame oneBotFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	if frame.PostType != "message" || frame.MessageType != "group" {
		return nil, nil
	}
	if frame.GroupID == "" || frame.UserID == "" {
		return nil, fmt.Errorf("group message without group_id or user_id")
	}

	name := strings.TrimSpace(frame.Sender.Card)
	if name == "" {
		name = frame.Sender.Nickname
	}

	ts := time.Now()
	if frame.Time > 0 {
		ts = time.Unix(frame.Time, 0)
	}

	return &models.InboundEvent{
		ConversationID:    frame.GroupID.String(),
		SenderID:          frame.UserID.String(),
		SenderDisplayName: name,
		MessageText:       frame.RawMessage,
		MessageID:         frame.MessageID.String(),
		Timestamp:         ts,
		SelfID:            frame.SelfID.String(),
	}, nil
}
