package runtime

import (
	"context"
	"direct-chat/contract"
	"direct-chat/domain"
	"direct-chat/domain/event"
	"direct-chat/errors"
	"direct-chat/services"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

const sendFailed = "Failed to send message"

// Router dispatches the events of every live connection.
// Events of one connection are handled sequentially by its read loop,
// different connections run in parallel.
type Router struct {
	registry  contract.IPresenceRegistry
	chat      services.IChatService
	directory contract.IUserDirectory
	log       *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session // map connection handle -> session
}

// NewRouter builds a router. directory may be nil, join payloads then
// provide the display info.
func NewRouter(registry contract.IPresenceRegistry, chat services.IChatService,
	directory contract.IUserDirectory, log *slog.Logger) *Router {
	return &Router{
		registry:  registry,
		chat:      chat,
		directory: directory,
		log:       log,
		sessions:  make(map[string]*Session),
	}
}

// Connect registers a new connection. verifiedUserID is the identity proven
// at upgrade time, empty for unauthenticated connections.
func (r *Router) Connect(sink contract.EventSink, verifiedUserID string) *Session {
	session := newSession(sink, verifiedUserID)
	r.mu.Lock()
	r.sessions[sink.ID()] = session
	r.mu.Unlock()
	r.log.Debug("Connection opened", "handle", sink.ID(), "verified_user", verifiedUserID)
	return session
}

func (r *Router) Handle(ctx context.Context, session *Session, envelope event.Envelope) {
	if session.State() == Disconnected {
		return
	}
	switch envelope.Event {
	case event.Join:
		r.join(ctx, session, envelope)
	case event.SendMessage:
		r.sendMessage(ctx, session, envelope)
	case event.TypingStart:
		r.typing(session, envelope, true)
	case event.TypingStop:
		r.typing(session, envelope, false)
	case event.UpdateStatus:
		r.updateStatus(session, envelope)
	case event.GetOnlineUsers:
		r.emit(session.sink, event.OnlineUsersUpdated, r.registry.Snapshot())
	default:
		r.log.Debug("Unknown event ignored", "handle", session.Handle(), "event", envelope.Event)
	}
}

// Disconnect is safe to call several times and for sessions that never joined.
// Others are told the user went offline only when this connection still
// owned the presence entry.
func (r *Router) Disconnect(session *Session) {
	previous := session.disconnect()
	if previous == Disconnected {
		return
	}
	r.mu.Lock()
	delete(r.sessions, session.Handle())
	r.mu.Unlock()

	if previous != Joined {
		r.log.Debug("Connection closed before join", "handle", session.Handle())
		return
	}
	entry, removed := r.registry.Leave(session.Handle())
	if !removed {
		r.log.Debug("Connection closed after being replaced", "handle", session.Handle())
		return
	}
	r.log.Info("User went offline", "user_id", entry.UserID)
	r.broadcast(session.Handle(), event.UserStatusChanged, event.StatusChangedPayload{
		UserID: entry.UserID,
		Status: domain.StatusOffline,
	})
}

// Connections counts live connections, joined or not.
func (r *Router) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Router) join(ctx context.Context, session *Session, envelope event.Envelope) {
	var payload event.JoinPayload
	if err := envelope.Decode(&payload); err != nil {
		r.fail(session, fmt.Errorf("%w: malformed join payload", errors.ErrValidation), sendFailed)
		return
	}

	userID := session.VerifiedUserID()
	claimed := payload.UserID()
	switch {
	case userID == "":
		userID = claimed
	case claimed != "" && claimed != userID:
		r.log.Warn("Join identity differs from token, payload ignored",
			"handle", session.Handle(), "user_id", userID, "claimed", claimed)
	}
	if !domain.IsValidID(userID) {
		r.fail(session, fmt.Errorf("%w: join requires a valid user id", errors.ErrValidation), sendFailed)
		return
	}

	info := r.displayInfo(ctx, userID, payload)
	previous, err := session.join(userID)
	if err != nil {
		r.log.Warn("Join refused", "handle", session.Handle(), "error", err)
		return
	}
	if previous != "" && previous != userID {
		// Same connection, new identity: the old one leaves first.
		if entry, removed := r.registry.Leave(session.Handle()); removed {
			r.broadcast(session.Handle(), event.UserStatusChanged, event.StatusChangedPayload{
				UserID: entry.UserID,
				Status: domain.StatusOffline,
			})
		}
	}

	old, replaced := r.registry.Join(userID, session.sink, info)
	if replaced && old.Sink.ID() != session.Handle() {
		r.log.Info("User joined from a new connection", "user_id", userID, "previous_handle", old.Sink.ID())
	}
	r.log.Info("User joined", "user_id", userID, "handle", session.Handle())

	info.ID = userID
	r.broadcast(session.Handle(), event.UserStatusChanged, event.StatusChangedPayload{
		UserID:   userID,
		Status:   domain.StatusOnline,
		UserInfo: &info,
	})
	r.emit(session.sink, event.OnlineUsersUpdated, r.registry.Snapshot())
}

func (r *Router) sendMessage(ctx context.Context, session *Session, envelope event.Envelope) {
	senderID, ok := session.joined()
	if !ok {
		r.fail(session, fmt.Errorf("%w: join required before sending messages", errors.ErrValidation), sendFailed)
		return
	}
	var payload event.SendMessagePayload
	if err := envelope.Decode(&payload); err != nil {
		r.fail(session, fmt.Errorf("%w: malformed message payload", errors.ErrValidation), sendFailed)
		return
	}
	if payload.Sender != "" && payload.Sender != senderID {
		r.log.Warn("Sender differs from joined user", "user_id", senderID, "claimed", payload.Sender)
		r.fail(session, fmt.Errorf("%w: sender does not match the joined user", errors.ErrValidation), sendFailed)
		return
	}

	message, err := r.chat.SendMessage(ctx, senderID, payload.Receiver, payload.Message)
	if err != nil {
		r.fail(session, err, sendFailed)
		return
	}

	delivered := event.MessagePayload{
		ID:             message.ID,
		Sender:         message.Sender,
		Receiver:       payload.Receiver,
		Message:        message.Text,
		Timestamp:      message.Timestamp,
		ConversationID: message.ConversationID,
	}
	if receiver, online := r.registry.Lookup(payload.Receiver); online {
		r.emit(receiver, event.ReceiveMessage, delivered)
	}
	r.emit(session.sink, event.MessageSent, delivered)
}

func (r *Router) typing(session *Session, envelope event.Envelope, isTyping bool) {
	userID, ok := session.joined()
	if !ok {
		return
	}
	var payload event.TypingPayload
	if err := envelope.Decode(&payload); err != nil || payload.ReceiverID == "" {
		return
	}
	receiver, online := r.registry.Lookup(payload.ReceiverID)
	if !online {
		return
	}
	r.emit(receiver, event.UserTyping, event.TypingIndicatorPayload{UserID: userID, IsTyping: isTyping})
}

func (r *Router) updateStatus(session *Session, envelope event.Envelope) {
	userID, ok := session.joined()
	if !ok {
		return
	}
	var payload event.StatusPayload
	if err := envelope.Decode(&payload); err != nil {
		return
	}
	status := strings.TrimSpace(payload.Status)
	if status == "" {
		return
	}
	info, ok := r.registry.SetStatusFor(session.Handle(), status)
	if !ok {
		return
	}
	r.broadcast(session.Handle(), event.UserStatusChanged, event.StatusChangedPayload{
		UserID:   userID,
		Status:   status,
		UserInfo: &info,
	})
}

func (r *Router) displayInfo(ctx context.Context, userID string, payload event.JoinPayload) domain.DisplayInfo {
	info := domain.DisplayInfo{ID: userID, Username: payload.Username, Email: payload.Email, Status: domain.StatusOnline}
	if r.directory == nil {
		return info
	}
	user, err := r.directory.GetUserByID(ctx, userID)
	switch {
	case err == nil:
		return user.DisplayInfo(domain.StatusOnline)
	case stderrors.Is(err, errors.ErrNotFound):
		r.log.Debug("Joined user not in directory", "user_id", userID)
	default:
		r.log.Warn("Directory lookup failed", "user_id", userID, "error", err)
	}
	return info
}

// fail reports err to the originating connection only.
func (r *Router) fail(session *Session, err error, fallback string) {
	if stderrors.Is(err, errors.ErrValidation) {
		r.log.Debug("Event rejected", "handle", session.Handle(), "user_id", session.UserID(), "error", err)
	} else {
		r.log.Error("Event failed", "handle", session.Handle(), "user_id", session.UserID(), "error", err)
	}
	r.emit(session.sink, event.MessageError, event.ErrorPayload{Error: errors.PublicMessage(err, fallback)})
}

// broadcast emits to every connection except the one owning except.
// The session map is copied under the read lock, emission happens outside.
func (r *Router) broadcast(except string, name event.Name, payload any) {
	r.mu.RLock()
	targets := make([]contract.EventSink, 0, len(r.sessions))
	for handle, session := range r.sessions {
		if handle != except {
			targets = append(targets, session.sink)
		}
	}
	r.mu.RUnlock()

	for _, sink := range targets {
		r.emit(sink, name, payload)
	}
}

func (r *Router) emit(sink contract.EventSink, name event.Name, payload any) {
	if err := sink.Emit(name, payload); err != nil {
		r.log.Debug("Emit failed", "handle", sink.ID(), "event", name, "error", err)
	}
}
