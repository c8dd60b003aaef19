// Package reconcile resolves free-text taxonomy labels from generated
// content against the reference tables, creating rows where the taxonomy
// allows it.
package reconcile

import "strings"

// Slugify converts a display name into a URL-safe slug. Apostrophes are
// removed rather than replaced so "Gail's Bakery" becomes "gails-bakery",
// not "gail-s-bakery". Every other non-alphanumeric run collapses to a
// single hyphen.
func Slugify(name string) string {
	lower := strings.ToLower(name)
	lower = strings.ReplaceAll(lower, "'", "")
	lower = strings.ReplaceAll(lower, "’", "")

	var b strings.Builder
	b.Grow(len(lower))
	prevHyphen := false
	for _, r := range lower {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen && b.Len() > 0 {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
