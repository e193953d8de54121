package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary avoids short words that collide inside ordinary ones.
func TestModerator_Censor(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	mod, err := NewModerator([]string{"badger", "snake", "mushroom"}, replacementChar, log)
	require.NoError(t, err)
	require.True(t, mod.Enabled())

	tests := []struct {
		name     string
		input    string
		expected string
		matches  int
	}{
		{"Simple word", "The badger is here", "The ****** is here", 1},
		{"Repeated word", "badger badger", "****** ******", 2},
		{"Leet speak and punctuation", "Look at B.4.d.g.€r !", "Look at ********** !", 1},
		{"Spaced out capitals", "S-N-A-K-E is sleeping", "********* is sleeping", 1},
		{"Accents are kept", "Un été avec un badger", "Un été avec un ******", 1},
		{"Clean text", "hello there", "hello there", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			censored, matches := mod.Censor(tt.input)
			req.Equal(tt.expected, censored)
			req.Equal(tt.matches, matches)
		})
	}
}

func TestModerator_Without_Words_Is_Passthrough(t *testing.T) {
	req := require.New(t)
	mod, err := NewModerator([]string{"", "   "}, replacementChar, logs.GetLoggerFromLevel(slog.LevelError))
	req.NoError(err)
	req.False(mod.Enabled())

	censored, matches := mod.Censor("badger")
	req.Equal("badger", censored)
	req.Zero(matches)

	var nilModerator *Moderator
	censored, _ = nilModerator.Censor("anything")
	req.Equal("anything", censored)
}
