package ws

import (
	"direct-chat/auth"
	"direct-chat/domain"
	"direct-chat/domain/event"
	"direct-chat/errors"
	"direct-chat/repositories"
	"direct-chat/runtime"
	"direct-chat/services"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server *httptest.Server
	tokens *auth.TokenManager
	router *runtime.Router
}

func newFixture(t *testing.T, cfg Config) fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelError)
	registry := runtime.NewRegistry()
	store := repositories.NewBadgerConversationStore(db, log)
	chat := services.NewChatService(store, nil, nil, nil, registry, log, 1000)
	router := runtime.NewRouter(registry, chat, nil, log)
	tokens := auth.NewTokenManager("test-key", time.Minute)

	server := httptest.NewServer(NewServer(router, tokens, cfg, log))
	t.Cleanup(server.Close)
	return fixture{server: server, tokens: tokens, router: router}
}

func (f fixture) url(query string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws" + query
}

func (f fixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := f.tokens.Generate(userID)
	require.NoError(t, err)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(f.url(""), header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, name event.Name, payload any) {
	t.Helper()
	envelope, err := event.NewEnvelope(name, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(envelope))
}

// expect reads frames until one named name arrives.
func expect(t *testing.T, conn *websocket.Conn, name event.Name, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var envelope event.Envelope
		require.NoError(t, conn.ReadJSON(&envelope))
		if envelope.Event == name {
			require.NoError(t, envelope.Decode(v))
			return
		}
	}
}

func join(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()
	send(t, conn, event.Join, event.JoinPayload{MongoID: userID, Username: "user-" + userID[:4]})
	var snapshot []domain.DisplayInfo
	expect(t, conn, event.OnlineUsersUpdated, &snapshot)
}

func TestServer_Rejects_Upgrade_Without_Token(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, Config{RequireAuthenticatedJoin: true})

	_, resp, err := websocket.DefaultDialer.Dial(f.url(""), nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(f.url("?token=garbage"), nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_Rejects_Unknown_Origin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, Config{AllowedOrigins: []string{"http://chat.example"}})

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(f.url(""), header)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://chat.example")
	conn, _, err := websocket.DefaultDialer.Dial(f.url(""), header)
	req.NoError(err)
	req.NoError(conn.Close())
}

func TestServer_Delivers_Messages_Between_Sockets(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, Config{RequireAuthenticatedJoin: true})
	alice, bob := domain.NewID(), domain.NewID()

	aliceConn := f.dial(t, alice)
	join(t, aliceConn, alice)
	bobConn := f.dial(t, bob)
	join(t, bobConn, bob)

	// Given alice saw bob coming online
	var online event.StatusChangedPayload
	expect(t, aliceConn, event.UserStatusChanged, &online)
	req.Equal(bob, online.UserID)
	req.Equal(domain.StatusOnline, online.Status)

	// When bob writes to alice
	send(t, bobConn, event.SendMessage, event.SendMessagePayload{Sender: bob, Receiver: alice, Message: "  hello  "})

	// Then alice receives the trimmed message and bob the confirmation
	var received, sent event.MessagePayload
	expect(t, aliceConn, event.ReceiveMessage, &received)
	expect(t, bobConn, event.MessageSent, &sent)
	req.Equal("hello", received.Message)
	req.Equal(bob, received.Sender)
	req.Equal(alice, received.Receiver)
	req.Equal(sent.ID, received.ID)
	req.Equal(sent.ConversationID, received.ConversationID)

	// When bob leaves
	req.NoError(bobConn.Close())

	// Then alice is told bob went offline
	var offline event.StatusChangedPayload
	expect(t, aliceConn, event.UserStatusChanged, &offline)
	req.Equal(bob, offline.UserID)
	req.Equal(domain.StatusOffline, offline.Status)
}

func TestServer_Anonymous_Socket_Trusts_Join_Payload(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, Config{RequireAuthenticatedJoin: false})
	carol := domain.NewID()

	conn, _, err := websocket.DefaultDialer.Dial(f.url(""), nil)
	req.NoError(err)
	defer conn.Close()

	send(t, conn, event.Join, event.JoinPayload{ID: carol, Username: "carol"})
	var snapshot []domain.DisplayInfo
	expect(t, conn, event.OnlineUsersUpdated, &snapshot)
	req.Len(snapshot, 1)
	req.Equal(carol, snapshot[0].ID)
}

func TestServer_Ignores_Malformed_Frames(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, Config{RequireAuthenticatedJoin: true})
	dave := domain.NewID()
	conn := f.dial(t, dave)

	// Given garbage and an unknown event
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	send(t, conn, event.Name("dance"), nil)

	// Then the connection still serves the next frame
	join(t, conn, dave)
	req.Eventually(func() bool { return f.router.Connections() == 1 }, time.Second, 10*time.Millisecond)
}

func TestConn_Emit_Drops_When_Queue_Full(t *testing.T) {
	req := require.New(t)
	conn := newConn(nil, Config{SendBufferSize: 1}.withDefaults(), logs.GetLoggerFromLevel(slog.LevelError))

	req.NoError(conn.Emit(event.UserTyping, event.TypingIndicatorPayload{UserID: "a", IsTyping: true}))
	err := conn.Emit(event.UserTyping, event.TypingIndicatorPayload{UserID: "a", IsTyping: false})
	req.True(stderrors.Is(err, errors.ErrSendQueueFull))

	conn.Close()
	conn.Close()
	req.ErrorIs(conn.Emit(event.UserTyping, nil), errors.ErrConnectionClosed)
}

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	cfg := Config{PongTimeout: 10 * time.Second, PingInterval: time.Minute}.withDefaults()
	req.Equal(9*time.Second, cfg.PingInterval)
	req.Equal(int64(defaultReadLimit), cfg.ReadLimit)
	req.Equal(64, cfg.SendBufferSize)
}
