package domain

import "strings"

// =============================================================================
// Slug Generation
// =============================================================================

// Slugify converts a product name or category label to a URL-safe slug.
//
// The transformation rules are:
//   - ASCII letters are lowercased, digits are kept
//   - Runs of spaces, hyphens, underscores, slashes and dots become a single hyphen
//   - All other characters are removed
//   - Leading and trailing hyphens are trimmed
//
// Example:
//
//	Slugify("Linen Shirt")          // returns "linen-shirt"
//	Slugify("Home & Garden")        // returns "home-garden"
//	Slugify("  Mugs / Cups 2.0 ")   // returns "mugs-cups-2-0"
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingSep := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r + ('a' - 'A'))
		case r == ' ', r == '-', r == '_', r == '/', r == '.', r == '\t':
			pendingSep = true
		}
	}

	return b.String()
}
