package moderation

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
)

// BenchmarkModerator_Censor measures a chat-sized message against a large dictionary.
func BenchmarkModerator_Censor(b *testing.B) {
	words := make([]string, 0, 10_000)
	for i := range 10_000 {
		words = append(words, fmt.Sprintf("forbidden%d", i))
	}
	mod, err := NewModerator(words, '*', logs.GetLoggerFromLevel(slog.LevelError))
	if err != nil {
		b.Fatal(err)
	}
	message := strings.Repeat("hello there, this is a perfectly normal message forbidden42 ", 4)

	b.ResetTimer()
	for range b.N {
		mod.Censor(message)
	}
}
