// Package sanitize turns arbitrary meeting labels into names that are safe
// to use as Drive file and folder names.
package sanitize

import "strings"

// invalid holds the characters Drive (and most filesystems) reject outright.
const invalid = `<>:"/\|?*`

// Name sanitizes a raw label into a storage-safe file or folder name.
// The transformation is deterministic and idempotent: sanitizing an
// already-sanitized name returns it unchanged.
func Name(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if strings.ContainsRune(invalid, r) || r == '\'' {
			continue
		}
		switch r {
		case '&':
			b.WriteString("and")
		case '%':
			b.WriteString("percent")
		case ' ':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
