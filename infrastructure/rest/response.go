package rest

import (
	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/services"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/lo"
)

const internalError = "Internal server error"

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type authResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

type verificationResponse struct {
	Status bool          `json:"status"`
	Token  string        `json:"token,omitempty"`
	User   *userResponse `json:"user,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type messageResponse struct {
	ID             string    `json:"_id"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	Message        string    `json:"message"`
	Timestamp      time.Time `json:"timestamp"`
	IsRead         bool      `json:"isRead"`
}

type lastMessageResponse struct {
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type conversationResponse struct {
	ID           string               `json:"_id"`
	Participants []domain.DisplayInfo `json:"participants"`
	LastMessage  *lastMessageResponse `json:"lastMessage,omitempty"`
	LastActivity time.Time            `json:"lastActivity"`
	CreatedAt    time.Time            `json:"createdAt"`
}

type markReadResponse struct {
	Success bool `json:"success"`
	Updated int  `json:"updated"`
}

type searchResponse struct {
	Total    uint64            `json:"total"`
	Offset   int               `json:"offset"`
	Messages []messageResponse `json:"messages"`
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{ID: user.ID, Username: user.Username, Email: user.Email}
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender,
		Message:        m.Text,
		Timestamp:      m.Timestamp,
		IsRead:         m.IsRead,
	}
}

func toMessagesResponse(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(m domain.Message, _ int) messageResponse {
		return toMessageResponse(m)
	})
}

func toConversationResponse(summary services.ConversationSummary) conversationResponse {
	c := summary.Conversation
	response := conversationResponse{
		ID:           c.ID,
		Participants: summary.Participants,
		LastActivity: c.LastActivity,
		CreatedAt:    c.CreatedAt,
	}
	if c.LastMessage != nil {
		response.LastMessage = &lastMessageResponse{
			Sender:    c.LastMessage.Sender,
			Message:   c.LastMessage.Text,
			Timestamp: c.LastMessage.Timestamp,
		}
	}
	return response
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err onto a status. Server side failures are logged and hidden.
func writeError(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	status := errors.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		log.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Success: false, Message: errors.PublicMessage(err, internalError)})
}
