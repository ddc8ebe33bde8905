// Package texttool implements the text manipulation tools exposed by the server
package texttool

import (
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Reverse returns s with its runes in reverse order. Multi-byte sequences
// stay intact at the rune boundary; grapheme clusters are not normalized.
func Reverse(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// Uppercase returns s with all letters mapped to upper case, locale-invariant.
func Uppercase(s string) string {
	return strings.ToUpper(s)
}

// Lowercase returns s with all letters mapped to lower case, locale-invariant.
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// WordCount returns the number of whitespace-separated words in s. Runs of
// whitespace collapse into a single separator; empty or whitespace-only input
// counts zero words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// CharacterCount returns the total rune count of s and the count excluding
// unicode whitespace.
func CharacterCount(s string) (total int, withoutSpaces int) {
	total = utf8.RuneCountInString(s)
	for _, r := range s {
		if !unicode.IsSpace(r) {
			withoutSpaces++
		}
	}
	return total, withoutSpaces
}

// Shuffle returns a uniformly random permutation of the runes of s. The
// process-global non-cryptographic generator is used; the result is not
// suitable for security-sensitive use.
func Shuffle(s string) string {
	return shuffleRunes(s, rand.IntN)
}

// ShuffleWithRand is Shuffle with a caller-supplied generator, for when a
// reproducible permutation is needed.
func ShuffleWithRand(s string, rng *rand.Rand) string {
	return shuffleRunes(s, rng.IntN)
}

// shuffleRunes applies a Fisher-Yates shuffle: i walks from the last index
// down to 1, j is drawn uniform in [0, i], positions i and j swap.
func shuffleRunes(s string, intn func(int) int) string {
	runes := []rune(s)
	for i := len(runes) - 1; i > 0; i-- {
		j := intn(i + 1)
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
