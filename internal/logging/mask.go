package logging

import (
	"regexp"

	"github.com/vvka-141/pgready/pkg/pgready"
)

var (
	// scheme://user:password@ with the password running up to the last '@'
	// before the first '/', so an '@' in the path or query is left alone.
	urlPassword = regexp.MustCompile(`(?i)([a-z][a-z0-9+.-]*://[^:@/\s]*:)([^\s/]*)@`)

	// password=secret in keyword/value DSNs.
	keywordPassword = regexp.MustCompile(`(?i)(\bpassword\s*=\s*)('[^']*'|[^\s&;]+)`)
)

// MaskConnectionString replaces the password segment of a connection string
// with pgready.MaskedPassword so it can be logged.
func MaskConnectionString(s string) string {
	s = urlPassword.ReplaceAllString(s, "${1}"+pgready.MaskedPassword+"@")
	return keywordPassword.ReplaceAllString(s, "${1}"+pgready.MaskedPassword)
}
