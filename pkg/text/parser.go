// Package text provides argument parsing and name formatting for chat commands.
package text

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// ErrUsage indicates malformed command arguments. Handlers reply with a usage
// line and perform no further work.
var ErrUsage = errors.New("invalid command arguments")

// SplitArgs splits the argument tail of a command on whitespace.
// An empty or all-whitespace tail yields a nil slice.
func SplitArgs(tail string) []string {
	return strings.Fields(tail)
}

// ParseOnOff parses an "on"/"off" toggle argument, case-insensitively.
func ParseOnOff(arg string) (bool, error) {
	switch strings.ToLower(arg) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected on|off, got %q", ErrUsage, arg)
	}
}

// ParseChatID parses a chat id argument (Telegram group ids are negative int64).
func ParseChatID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: expected a chat id, got %q", ErrUsage, arg)
	}
	return id, nil
}

// FormatNameVars substitutes {first}, {last} and {username} placeholders in
// greeting templates. A missing username substitutes the empty string.
func FormatNameVars(template, first, last, username string) string {
	mention := ""
	if username != "" {
		mention = "@" + username
	}
	r := strings.NewReplacer(
		"{first}", first,
		"{last}", last,
		"{username}", mention,
	)
	return r.Replace(template)
}

// DisplayName formats a user's name parts into the canonical history entry,
// e.g. `Ada Lovelace (@ada)`. Users without a username get `(@no_username)`.
func DisplayName(first, last, username string) string {
	if username == "" {
		username = "no_username"
	}
	name := strings.TrimSpace(first + " " + last)
	return strings.TrimSpace(name + " (@" + username + ")")
}

// Fold normalizes text for case-insensitive matching: NFKD decomposition,
// combining marks stripped, lowercased.
func Fold(s string) string {
	s = norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsMark(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// ContainsFold reports whether needle occurs in haystack under Fold.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}
