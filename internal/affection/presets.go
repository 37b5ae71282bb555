// Package affection holds the catalogue of preset messages a user can send.
package affection

import (
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
)

// DefaultPresets is used when configuration supplies none.
var DefaultPresets = []string{
	"I love you ❤️",
	"Miss you 🥺",
	"Thinking of you 💭",
	"Hugs 🤗",
	"Kisses 😘",
	"Good night 🌙",
	"Good morning ☀️",
}

// Catalogue is an ordered list of presets.
type Catalogue struct {
	presets []string
}

// NewCatalogue keeps the non-blank entries of presets, falling back to DefaultPresets.
func NewCatalogue(presets []string) Catalogue {
	out := make([]string, 0, len(presets))
	for _, p := range presets {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = append(out, DefaultPresets...)
	}
	return Catalogue{presets: out}
}

// List returns a copy of the presets in display order.
func (c Catalogue) List() []string {
	return append([]string(nil), c.presets...)
}

// At returns the preset at the 1-based position n.
func (c Catalogue) At(n int) (string, bool) {
	if n < 1 || n > len(c.presets) {
		return "", false
	}
	return c.presets[n-1], true
}

// Resolve maps user input to a message body. A 1-based index or a phrase that
// matches a preset (ignoring case, emoji and small typos) yields that preset;
// anything else is sent as typed.
func (c Catalogue) Resolve(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if n, err := strconv.Atoi(input); err == nil {
		if p, ok := c.At(n); ok {
			return p
		}
		return input
	}

	needle := phrase(input)
	best, bestDist := "", -1
	for _, p := range c.presets {
		hay := phrase(p)
		if hay == needle {
			return p
		}
		d := levenshtein.ComputeDistance(needle, hay)
		if d*3 > len([]rune(hay)) {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = p, d
		}
	}
	if best != "" {
		return best
	}
	return input
}

// phrase lowercases s and drops everything but letters, digits and single spaces.
func phrase(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			space = true
		}
	}
	return b.String()
}
