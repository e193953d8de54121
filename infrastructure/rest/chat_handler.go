package rest

import (
	"direct-chat/auth"
	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/services"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

func (h *Handler) conversations(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.UserIDFromContext(r.Context())
	summaries, err := h.chat.ListConversations(r.Context(), caller)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(summaries, func(s services.ConversationSummary, _ int) conversationResponse {
		return toConversationResponse(s)
	}))
}

func (h *Handler) messages(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.UserIDFromContext(r.Context())
	vars := mux.Vars(r)
	messages, err := h.chat.History(r.Context(), caller, vars["user1"], vars["user2"])
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessagesResponse(messages))
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.UserIDFromContext(r.Context())
	conversationID := mux.Vars(r)["conversationId"]
	if !domain.IsValidID(conversationID) {
		writeError(w, h.log, r, fmt.Errorf("%w: invalid conversation id", errors.ErrValidation))
		return
	}
	updated, err := h.chat.MarkRead(r.Context(), conversationID, caller)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markReadResponse{Success: true, Updated: updated})
}

func (h *Handler) users(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.UserIDFromContext(r.Context())
	users, err := h.chat.Users(r.Context(), caller)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.UserIDFromContext(r.Context())
	conversationID := mux.Vars(r)["conversationId"]
	if !domain.IsValidID(conversationID) {
		writeError(w, h.log, r, fmt.Errorf("%w: invalid conversation id", errors.ErrValidation))
		return
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, h.log, r, fmt.Errorf("%w: offset must be a positive integer", errors.ErrValidation))
			return
		}
		offset = parsed
	}
	result, err := h.chat.Search(r.Context(), caller, conversationID, r.URL.Query().Get("q"), offset)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Total:    result.Total,
		Offset:   offset,
		Messages: toMessagesResponse(result.Messages),
	})
}
