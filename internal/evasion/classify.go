package evasion

import (
	"regexp"
	"strings"
)

var (
	trailingDigits = regexp.MustCompile(`[0-9]+$`)
	numberedSuffix = regexp.MustCompile(`_[0-9]+$`)
	capsAndDigits  = regexp.MustCompile(`^[A-Z0-9_]+$`)
	anyDigit       = regexp.MustCompile(`[0-9]`)
)

// Classifier decides whether a roster name looks like another automated
// client. It is deliberately permissive: misreading a real player as a bot
// keeps us connected next to them, which is the dangerous direction, so any
// bot-ish signal counts.
type Classifier struct {
	// FriendlyPrefixes are name prefixes of known companion bots, matched
	// case-insensitively.
	FriendlyPrefixes []string
}

// IsBotLike reports whether name matches any of the bot heuristics:
// a configured friendly prefix, an "afk"/"bot" substring, a numbered suffix,
// trailing digits, or the all-caps-with-digits pattern common in generated
// names.
func (c *Classifier) IsBotLike(name string) bool {
	if name == "" {
		return true
	}

	lower := strings.ToLower(name)
	for _, prefix := range c.FriendlyPrefixes {
		if prefix != "" && strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return true
		}
	}

	if strings.Contains(lower, "afk") || strings.Contains(lower, "bot") {
		return true
	}

	if numberedSuffix.MatchString(name) {
		return true
	}

	if trailingDigits.MatchString(name) {
		return true
	}

	if capsAndDigits.MatchString(name) && anyDigit.MatchString(name) {
		return true
	}

	return false
}
