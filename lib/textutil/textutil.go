package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var separatorRegex = regexp.MustCompile(`[\s\-_]+`)

// Normalize lowercases name and drops whitespace, dashes and underscores so
// that "Engine Size", "engine-size" and "engine_size" compare equal.
func Normalize(name string) string {
	name = strings.ToLower(name)
	return separatorRegex.ReplaceAllString(name, "")
}

// Closest returns the candidate most similar to target by Jaro-Winkler
// similarity of their normalized forms, ok is false if there are no
// candidates.
func Closest(target string, candidates []string) (best string, score float64, ok bool) {
	normalized := Normalize(target)
	for _, c := range candidates {
		s := matchr.JaroWinkler(normalized, Normalize(c), false)
		if !ok || s > score {
			best, score, ok = c, s, true
		}
	}
	return best, score, ok
}
