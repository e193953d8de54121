package ws

import (
	"context"
	"direct-chat/auth"
	"direct-chat/domain/event"
	"direct-chat/runtime"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Server upgrades GET /ws and pumps frames between the socket and the router.
type Server struct {
	router   *runtime.Router
	tokens   *auth.TokenManager
	upgrader websocket.Upgrader
	cfg      Config
	log      *slog.Logger
}

func NewServer(router *runtime.Router, tokens *auth.TokenManager, cfg Config, log *slog.Logger) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		router: router,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
		},
		cfg: cfg,
		log: log,
	}
}

// checkOrigin accepts requests without Origin (non browser clients),
// every origin when the list is empty or holds "*", and listed origins otherwise.
func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	if len(allowedOrigins) == 0 || lo.Contains(allowedOrigins, "*") {
		return func(*http.Request) bool { return true }
	}
	allowed := lo.SliceToMap(allowedOrigins, func(origin string) (string, bool) {
		return origin, true
	})
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	verifiedUserID, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := newConn(socket, s.cfg, s.log)
	go conn.writePump()
	session := s.router.Connect(conn, verifiedUserID)

	s.readLoop(conn, session)

	s.router.Disconnect(session)
	conn.Close()
}

// authenticate resolves the identity proven by the token. Without a valid
// token the upgrade is refused, unless anonymous sockets are allowed.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := auth.TokenFromRequest(r)
	if raw == "" {
		if s.cfg.RequireAuthenticatedJoin {
			auth.Unauthorized(w, "No token, authorization denied")
			return "", false
		}
		return "", true
	}
	userID, err := s.tokens.Validate(raw)
	if err != nil {
		if s.cfg.RequireAuthenticatedJoin {
			auth.Unauthorized(w, "Token is not valid")
			return "", false
		}
		s.log.Debug("Ignoring invalid token on anonymous socket", "error", err)
		return "", true
	}
	return userID, true
}

// readLoop handles frames one at a time until the peer leaves or stops answering pings.
func (s *Server) readLoop(conn *Conn, session *runtime.Session) {
	socket := conn.ws
	socket.SetReadLimit(s.cfg.ReadLimit)
	_ = socket.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	ctx := context.Background()
	for {
		messageType, data, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				conn.log.Debug("Websocket read failed", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		var envelope event.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Event == "" {
			conn.log.Debug("Malformed frame ignored", "size", len(data), "error", err)
			continue
		}
		_ = socket.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		s.router.Handle(ctx, session, envelope)
	}
}
