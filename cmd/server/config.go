package main

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	backendBadger = "badger"
	backendMongo  = "mongo"
)

type Config struct {
	Host                     string        `env:"HOST,default=0.0.0.0"`
	Port                     int           `env:"PORT,default=5050"`
	LogLevel                 string        `env:"LOG_LEVEL,default=INFO"`
	StoreBackend             string        `env:"STORE_BACKEND,default=badger"`
	BadgerFilepath           string        `env:"BADGER_FILEPATH,default=./data/badger"`
	MongoURI                 string        `env:"MONGO_URI"`
	MongoDatabase            string        `env:"MONGO_DATABASE,default=direct_chat"`
	MongoMaxPoolSize         int           `env:"MONGO_MAX_POOL_SIZE,default=20"`
	MongoMaxRetry            int           `env:"MONGO_MAX_RETRY,default=5"`
	TokenKey                 string        `env:"TOKEN_KEY,required=true"`
	TokenDuration            time.Duration `env:"TOKEN_DURATION,default=15m"`
	SecureCookie             bool          `env:"SECURE_COOKIE,default=true"`
	AllowedOrigins           string        `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	RequireAuthenticatedJoin bool          `env:"REQUIRE_AUTHENTICATED_JOIN,default=true"`
	SendBufferSize           int           `env:"SEND_BUFFER_SIZE,default=64"`
	WriteTimeout             time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PingInterval             time.Duration `env:"PING_INTERVAL,default=25s"`
	PongTimeout              time.Duration `env:"PONG_TIMEOUT,default=60s"`
	MaxMessageLength         int           `env:"MAX_MESSAGE_LENGTH,default=2000"`
	CensoredWords            string        `env:"CENSORED_WORDS"`
	CensorCharacter          string        `env:"CENSOR_CHARACTER,default=*"`
	SearchIndexPath          string        `env:"SEARCH_INDEX_PATH"`
	SearchPageSize           int           `env:"SEARCH_PAGE_SIZE,default=20"`
	StatsInterval            time.Duration `env:"STATS_INTERVAL,default=1m"`
	RestartInterval          time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout          time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// splitList parses a comma separated variable, blanks removed.
func splitList(raw string) []string {
	items := lo.Map(strings.Split(raw, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	})
	return lo.Compact(items)
}

func (c Config) censorRune() rune {
	for _, r := range c.CensorCharacter {
		return r
	}
	return '*'
}
