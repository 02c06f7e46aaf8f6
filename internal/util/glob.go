package util

import (
	"regexp"
	"strings"
)

// GlobToRegexPattern translates a shell-style glob (supporting * and ?) into
// an anchored regex pattern string. It does not compile the pattern; callers
// share a compiled-regex cache and want to distinguish compile failures from
// translation.
func GlobToRegexPattern(glob string) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return b.String()
}
