package hookah

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Normalize returns the canonical form of p and its hex sha256 digest.
//
// Tastes and moods are treated as sets: entries are trimmed, blanks dropped,
// duplicates removed and the rest sorted. Zodiac sign, intensity and occasion
// pass through verbatim. Name is dropped.
func Normalize(p Preferences) (NormalizedPreferences, string) {
	n := NormalizedPreferences{
		Tastes:     normalizeSet(p.Tastes),
		ZodiacSign: p.ZodiacSign,
		Moods:      normalizeSet(p.Moods),
		Intensity:  p.Intensity,
		Occasion:   p.Occasion,
	}
	return n, Hash(n)
}

// Hash digests the JSON encoding of n.
// Callers should pass values produced by Normalize.
func Hash(n NormalizedPreferences) string {
	// Marshal of a struct of strings and string slices cannot fail.
	data, _ := json.Marshal(n)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HasPreference reports whether any field other than name is populated.
func HasPreference(p Preferences) bool {
	if len(normalizeSet(p.Tastes)) > 0 || len(normalizeSet(p.Moods)) > 0 {
		return true
	}
	for _, s := range []string{p.ZodiacSign, p.Intensity, p.Occasion} {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// normalizeSet never returns nil so that empty and missing sets hash the same.
func normalizeSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
