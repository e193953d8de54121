package main

import (
	"context"
	"direct-chat/auth"
	"direct-chat/infrastructure/rest"
	"direct-chat/infrastructure/ws"
	"direct-chat/moderation"
	"direct-chat/observability"
	"direct-chat/repositories"
	"direct-chat/runtime"
	"direct-chat/runtime/workers"
	"direct-chat/services"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run owns every resource so that deferred closes execute before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage
	store, err := openStore(ctx, config, log)
	if err != nil {
		return err
	}
	defer store.close()

	indexConfig := bluge.InMemoryOnlyConfig()
	if config.SearchIndexPath != "" {
		indexConfig = bluge.DefaultConfig(config.SearchIndexPath)
	}
	indexWriter, err := bluge.OpenWriter(indexConfig)
	if err != nil {
		return fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = indexWriter.Close()
	}()
	index := repositories.NewMessageIndex(indexWriter, log, config.SearchPageSize)

	// 3. Domain services
	moderator, err := moderation.NewModerator(splitList(config.CensoredWords), config.censorRune(), log)
	if err != nil {
		return fmt.Errorf("moderator setup failed: %w", err)
	}
	tokens := auth.NewTokenManager(config.TokenKey, config.TokenDuration)
	registry := runtime.NewRegistry()
	chat := services.NewChatService(store.conversations, store.users, index, moderator, registry, log, config.MaxMessageLength)
	authService := services.NewAuthService(store.users, tokens, log)
	router := runtime.NewRouter(registry, chat, store.users, log)

	// 4. Transports
	origins := splitList(config.AllowedOrigins)
	wsServer := ws.NewServer(router, tokens, ws.Config{
		AllowedOrigins:           origins,
		RequireAuthenticatedJoin: config.RequireAuthenticatedJoin,
		SendBufferSize:           config.SendBufferSize,
		WriteTimeout:             config.WriteTimeout,
		PingInterval:             config.PingInterval,
		PongTimeout:              config.PongTimeout,
	}, log)

	sampler, err := observability.NewProcessSampler()
	if err != nil {
		log.Warn("Process stats unavailable", "error", err)
	}
	handler := rest.NewHandler(chat, authService, tokens, sampler, rest.Config{
		AllowedOrigins: origins,
		TokenDuration:  config.TokenDuration,
		SecureCookie:   config.SecureCookie,
	}, log).Router(wsServer)

	address := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	server := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	// 5. Supervision
	var processSampler workers.ProcessSampler
	if sampler != nil {
		processSampler = sampler
	}
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewHTTPServerWorker(server, config.ShutdownTimeout, log).WithListener(listener),
		workers.NewStatsWorker(router, registry, processSampler, config.StatsInterval, log),
	)

	log.Info("Starting direct-chat", "address", address, "backend", config.StoreBackend, "at", time.Now().UTC())
	sup.Run(ctx)
	log.Info("Program stopped cleanly")
	return nil
}

type stores struct {
	conversations repositories.IConversationStore
	users         repositories.IUserRepository
	close         func()
}

func openStore(ctx context.Context, config Config, log *slog.Logger) (stores, error) {
	switch config.StoreBackend {
	case backendBadger:
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return stores{}, fmt.Errorf("database opening failed: %w", err)
		}
		return stores{
			conversations: repositories.NewBadgerConversationStore(db, log),
			users:         repositories.NewUserRepository(db),
			close: func() {
				log.Info("Closing BadgerDB...")
				_ = db.Close()
			},
		}, nil
	case backendMongo:
		if config.MongoURI == "" {
			return stores{}, fmt.Errorf("config error: MONGO_URI is required with the mongo backend")
		}
		client, db, err := repositories.ConnectMongo(ctx, repositories.MongoConfig{
			URI:         config.MongoURI,
			Database:    config.MongoDatabase,
			MaxPoolSize: config.MongoMaxPoolSize,
			MaxRetry:    config.MongoMaxRetry,
		}, log)
		if err != nil {
			return stores{}, fmt.Errorf("mongo connection failed: %w", err)
		}
		return stores{
			conversations: repositories.NewMongoConversationStore(db, log),
			users:         repositories.NewMongoUserRepository(db),
			close: func() {
				log.Info("Disconnecting MongoDB...")
				disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = client.Disconnect(disconnectCtx)
			},
		}, nil
	default:
		return stores{}, fmt.Errorf("config error: unknown STORE_BACKEND %q", config.StoreBackend)
	}
}
