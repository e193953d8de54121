// Package rest exposes authentication, history and health over HTTP.
package rest

import (
	"direct-chat/auth"
	"direct-chat/observability"
	"direct-chat/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

type Config struct {
	AllowedOrigins []string
	TokenDuration  time.Duration
	SecureCookie   bool
}

type Handler struct {
	chat    services.IChatService
	auth    services.IAuthService
	tokens  *auth.TokenManager
	sampler *observability.ProcessSampler
	cfg     Config
	log     *slog.Logger
}

// NewHandler builds the REST handlers. sampler may be nil, /health then
// reports liveness only.
func NewHandler(chat services.IChatService, authService services.IAuthService, tokens *auth.TokenManager,
	sampler *observability.ProcessSampler, cfg Config, log *slog.Logger) *Handler {
	return &Handler{
		chat:    chat,
		auth:    authService,
		tokens:  tokens,
		sampler: sampler,
		cfg:     cfg,
		log:     log,
	}
}

// Router mounts every route, the websocket endpoint included, behind CORS.
func (h *Handler) Router(websocket http.Handler) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	if websocket != nil {
		r.Handle("/ws", websocket).Methods(http.MethodGet)
	}

	authRoutes := r.PathPrefix("/api/auth").Subrouter()
	authRoutes.HandleFunc("/signup", h.signUp).Methods(http.MethodPost)
	authRoutes.HandleFunc("/login", h.login).Methods(http.MethodPost)
	authRoutes.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	authRoutes.HandleFunc("/userVerification", h.userVerification).Methods(http.MethodPost)

	chatRoutes := r.PathPrefix("/api/chat").Subrouter()
	chatRoutes.Use(auth.Middleware(h.tokens, h.log))
	chatRoutes.HandleFunc("/users", h.users).Methods(http.MethodGet)
	chatRoutes.HandleFunc("/conversations", h.conversations).Methods(http.MethodGet)
	chatRoutes.HandleFunc("/messages/{user1}/{user2}", h.messages).Methods(http.MethodGet)
	chatRoutes.HandleFunc("/conversations/{conversationId}/read", h.markRead).Methods(http.MethodPut)
	chatRoutes.HandleFunc("/conversations/{conversationId}/search", h.search).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   h.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})
	return c.Handler(r)
}

type healthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Uptime     float64   `json:"uptime"`
	PID        int32     `json:"pid,omitempty"`
	RSSBytes   uint64    `json:"rssBytes,omitempty"`
	CPUPercent float64   `json:"cpuPercent"`
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	response := healthResponse{Status: "OK", Timestamp: time.Now().UTC()}
	if h.sampler != nil {
		response.Uptime = time.Since(h.sampler.StartedAt()).Seconds()
		if stats, err := h.sampler.Sample(); err != nil {
			h.log.Debug("Failed to collect process stats", "error", err)
		} else {
			response.PID = stats.PID
			response.RSSBytes = stats.RSSBytes
			response.CPUPercent = stats.CPUPercent
		}
	}
	writeJSON(w, http.StatusOK, response)
}
