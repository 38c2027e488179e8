package usecase

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FormatTaskName renders a snake_case task id as a title, e.g.
// "throw_and_catch_ball" -> "Throw And Catch Ball".
func FormatTaskName(task string) string {
	words := strings.Split(task, "_")
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// FormatScore renders a similarity as a whole percentage.
func FormatScore(score float64) string {
	return fmt.Sprintf("%d%%", int64(math.Round(score*100)))
}

func resultNoun(n int) string {
	if n == 1 {
		return "result"
	}
	return "results"
}
