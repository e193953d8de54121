// Package moderation masks censored words in message bodies before they are stored.
package moderation

import (
	"log/slog"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks every occurrence of a censored word, including spellings
// hidden behind punctuation, spacing or leet substitutions.
// A Moderator without words lets every text through unchanged.
type Moderator struct {
	matcher    *goahocorasick.Machine
	censorChar rune
	log        *slog.Logger
}

var leet = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

func NewModerator(censoredWords []string, censorChar rune, log *slog.Logger) (*Moderator, error) {
	moderator := &Moderator{censorChar: censorChar, log: log}

	var patterns [][]rune
	for _, word := range censoredWords {
		folded, _ := fold(strings.TrimSpace(word))
		if len(folded) > 0 {
			patterns = append(patterns, folded)
		}
	}
	if len(patterns) == 0 {
		return moderator, nil
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	moderator.matcher = machine
	log.Debug("Moderation enabled", "words", len(patterns))
	return moderator, nil
}

func (m *Moderator) Enabled() bool {
	return m != nil && m.matcher != nil
}

// Censor returns text with each matched span replaced by the censor
// character, and the number of matches found.
func (m *Moderator) Censor(text string) (string, int) {
	if !m.Enabled() {
		return text, 0
	}
	folded, positions := fold(text)
	if len(folded) == 0 {
		return text, 0
	}
	matches := m.matcher.MultiPatternSearch(folded, false)
	if len(matches) == 0 {
		return text, 0
	}

	runes := []rune(text)
	for _, match := range matches {
		end := match.Pos + len(match.Word)
		if match.Pos < 0 || end > len(positions) {
			continue
		}
		// Noise between the first and last matched letters is masked too.
		for i := positions[match.Pos]; i <= positions[end-1]; i++ {
			runes[i] = m.censorChar
		}
	}
	m.log.Debug("Message censored", "matches", len(matches))
	return string(runes), len(matches)
}

// fold lowercases, undoes leet substitutions and drops noise runes.
// positions[i] is the index in the original runes of folded[i].
func fold(input string) (folded []rune, positions []int) {
	for i, r := range []rune(input) {
		if plain, ok := leet[r]; ok {
			r = plain
		}
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		folded = append(folded, unicode.ToLower(r))
		positions = append(positions, i)
	}
	return folded, positions
}
