package assemble

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes characters and removes combining marks, so
// "Résumé" slugs to "resume".
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns heading text into an anchor fragment: diacritics stripped,
// lowercased, runs of non-alphanumerics collapsed to single hyphens, edges
// trimmed. Returns "" when nothing survives.
func Slugify(s string) string {
	clean, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		clean = s
	}
	clean = strings.ToLower(clean)

	var b strings.Builder
	pendingHyphen := false
	for _, r := range clean {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}
