package shared

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns a display name into a URL-safe slug with a random suffix so
// slugs stay unique without leaking sequential ids.
func Slugify(name string) string {
	flat, _, err := transform.String(deaccent, name)
	if err != nil {
		flat = name
	}
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(flat) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	base := strings.Trim(b.String(), "-")
	suffix := uuid.NewString()[:8]
	if base == "" {
		return suffix
	}
	if len(base) > 40 {
		base = base[:40]
	}
	return base + "-" + suffix
}
