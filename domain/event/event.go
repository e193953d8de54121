// Package event defines the realtime protocol exchanged over a live connection.
// Every frame is an Envelope tagged with the event name.
package event

import (
	"direct-chat/domain"
	"encoding/json"
	"time"
)

type Name string

const (
	// client -> server
	Join           Name = "join"
	SendMessage    Name = "send_message"
	TypingStart    Name = "typing_start"
	TypingStop     Name = "typing_stop"
	UpdateStatus   Name = "update_status"
	GetOnlineUsers Name = "get_online_users"

	// server -> client
	ReceiveMessage     Name = "receive_message"
	MessageSent        Name = "message_sent"
	MessageError       Name = "message_error"
	OnlineUsersUpdated Name = "online_users_updated"
	UserStatusChanged  Name = "user_status_changed"
	UserTyping         Name = "user_typing"
)

type Envelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(name Name, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: name, Data: data}, nil
}

// Decode unmarshals the payload into v. An absent payload leaves v untouched.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

type JoinPayload struct {
	ID       string `json:"id"`
	MongoID  string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserID accepts both spellings sent by clients, "_id" first.
func (p JoinPayload) UserID() string {
	if p.MongoID != "" {
		return p.MongoID
	}
	return p.ID
}

type SendMessagePayload struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
}

type TypingPayload struct {
	ReceiverID string `json:"receiverId"`
}

type StatusPayload struct {
	Status string `json:"status"`
}

// MessagePayload is shared by receive_message and message_sent.
type MessagePayload struct {
	ID             string    `json:"_id"`
	Sender         string    `json:"sender"`
	Receiver       string    `json:"receiver"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversationId"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

type StatusChangedPayload struct {
	UserID   string              `json:"userId"`
	Status   string              `json:"status"`
	UserInfo *domain.DisplayInfo `json:"userInfo,omitempty"`
}

type TypingIndicatorPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}
