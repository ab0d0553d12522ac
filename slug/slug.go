// Package slug turns article URLs into names that are safe to use as files.
package slug

import (
	"regexp"
	"strings"
)

// MaxLength is the longest slug FromURL returns.
const MaxLength = 100

// Fallback is returned when a URL has no usable path.
const Fallback = "article"

var (
	unsafeRun = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	scheme    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
)

// FromURL derives a filename from the path of rawURL as written, so percent
// escapes survive ("hello%20world" becomes "hello_20world"). Runs of
// characters outside [a-zA-Z0-9] collapse to a single underscore and the
// result is cut to MaxLength.
func FromURL(rawURL string) string {
	path := strings.Trim(rawPath(rawURL), "/")
	s := unsafeRun.ReplaceAllString(path, "_")
	if len(s) > MaxLength {
		s = s[:MaxLength]
	}
	if s == "" {
		return Fallback
	}
	return s
}

// rawPath returns the undecoded path component of rawURL: what follows the
// scheme and authority, up to the first '?' or '#'.
func rawPath(rawURL string) string {
	rest := rawURL
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}

	if loc := scheme.FindStringIndex(rest); loc != nil {
		rest = rest[loc[1]:]
	}
	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return rest[i:]
		}
		return ""
	}
	return rest
}
