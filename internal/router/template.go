package router

import (
	"regexp"
	"time"

	"replybot/internal/rules"
	"replybot/pkg/models"
)

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// Renderer fills reply templates. Recognised placeholders are {user},
// {user_id}, {group}, {group_id}, {time} and {date}; anything else is left
// as written.
type Renderer struct {
	location *time.Location
}

func NewRenderer(location *time.Location) *Renderer {
	if location == nil {
		location = time.Local
	}
	return &Renderer{location: location}
}

func (r *Renderer) Render(template string, event models.InboundEvent, conversation rules.Conversation, now time.Time) string {
	local := now.In(r.location)

	return placeholder.ReplaceAllStringFunc(template, func(token string) string {
		switch token[1 : len(token)-1] {
		case "user":
			if event.SenderDisplayName != "" {
				return event.SenderDisplayName
			}
			return event.SenderID
		case "user_id":
			return event.SenderID
		case "group":
			if conversation.Name != "" {
				return conversation.Name
			}
			return event.ConversationID
		case "group_id":
			return event.ConversationID
		case "time":
			return local.Format("15:04")
		case "date":
			return local.Format("2006-01-02")
		default:
			return token
		}
	})
}
