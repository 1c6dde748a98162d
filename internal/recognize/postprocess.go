package recognize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Markers whisper emits for background activity instead of speech.
var nonSpeechMarker = regexp.MustCompile(`(?i)[\[(](` +
	`music|applause|laughter|noise|silence|background|background noise|blank_audio|` +
	`музыка|аплодисменты|смех|шум|тишина|фон` +
	`)[\])][,.;:!?]*`)

const (
	minRepetition = 2
	maxRepetition = 10
)

// PostProcess cleans recognized text: drops non-speech markers, collapses
// whitespace, removes immediately repeated phrases and capitalizes the first
// letter.
func PostProcess(text string) string {
	text = nonSpeechMarker.ReplaceAllString(text, " ")
	words := strings.Fields(text)
	words = removeRepetitions(words)
	return capitalize(strings.Join(words, " "))
}

// removeRepetitions collapses a phrase of 2 to 10 words that is immediately
// repeated, preferring the longest match.
func removeRepetitions(words []string) []string {
	if len(words) < 2*minRepetition {
		return words
	}

	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		n := repetitionAt(words, i)
		if n == 0 {
			out = append(out, words[i])
			i++
			continue
		}
		out = append(out, words[i:i+n]...)
		i += 2 * n
	}
	return out
}

func repetitionAt(words []string, i int) int {
	for n := min(maxRepetition, (len(words)-i)/2); n >= minRepetition; n-- {
		if equalWords(words[i:i+n], words[i+n:i+2*n]) {
			return n
		}
	}
	return 0
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
