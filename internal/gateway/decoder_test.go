package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneBotDecoder(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		wantNil bool
		wantErr bool
		check   func(t *testing.T, conversation, sender, name, text, messageID, selfID string, ts time.Time)
	}{
		{
			name:  "group message prefers card",
			frame: `{"post_type":"message","message_type":"group","time":1700000000,"self_id":42,"group_id":123,"user_id":1001,"message_id":-7,"raw_message":"hi [CQ:face,id=1]","sender":{"nickname":"alice","card":"Alice W."}}`,
			check: func(t *testing.T, conversation, sender, name, text, messageID, selfID string, ts time.Time) {
				assert.Equal(t, "123", conversation)
				assert.Equal(t, "1001", sender)
				assert.Equal(t, "Alice W.", name)
				assert.Equal(t, "hi [CQ:face,id=1]", text)
				assert.Equal(t, "-7", messageID)
				assert.Equal(t, "42", selfID)
				assert.Equal(t, int64(1700000000), ts.Unix())
			},
		},
		{
			name:  "nickname when card empty",
			frame: `{"post_type":"message","message_type":"group","group_id":1,"user_id":2,"message_id":3,"raw_message":"x","sender":{"nickname":"bob","card":" "}}`,
			check: func(t *testing.T, conversation, sender, name, text, messageID, selfID string, ts time.Time) {
				assert.Equal(t, "bob", name)
				assert.False(t, ts.IsZero())
			},
		},
		{name: "heartbeat ignored", frame: `{"post_type":"meta_event","meta_event_type":"heartbeat","interval":5000}`, wantNil: true},
		{name: "lifecycle ignored", frame: `{"post_type":"meta_event","meta_event_type":"lifecycle","sub_type":"connect"}`, wantNil: true},
		{name: "private message ignored", frame: `{"post_type":"message","message_type":"private","user_id":2,"raw_message":"x"}`, wantNil: true},
		{name: "notice ignored", frame: `{"post_type":"notice","notice_type":"group_increase"}`, wantNil: true},
		{name: "action response ignored", frame: `{"status":"ok","retcode":0,"data":null}`, wantNil: true},
		{name: "malformed json", frame: `{"post_type":`, wantErr: true},
		{name: "group message missing ids", frame: `{"post_type":"message","message_type":"group","raw_message":"x"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := OneBotDecoder{}.Decode([]byte(tt.frame))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, event)
				return
			}
			require.NotNil(t, event)
			tt.check(t, event.ConversationID, event.SenderID, event.SenderDisplayName, event.MessageText, event.MessageID, event.SelfID, event.Timestamp)
		})
	}
}
