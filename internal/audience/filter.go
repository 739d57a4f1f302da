// Package audience turns a declarative audience (type tags and an email
// preference) into a deduplicated list of deliverable addresses.
package audience

import (
	"strings"

	"github.com/foxzi/alumnet/internal/models"
)

// SelectAddresses returns the address fields of p that qualify under pref.
// With PreferBoth each non-empty field contributes on its own, so a person can
// yield two entries even when both fields hold the same address.
func SelectAddresses(p models.Person, pref models.EmailPreference) []string {
	primary := strings.TrimSpace(p.Email1)
	secondary := strings.TrimSpace(p.Email2)

	var out []string
	switch pref {
	case models.PreferPrimary:
		if primary != "" {
			out = append(out, primary)
		}
	case models.PreferSecondary:
		if secondary != "" {
			out = append(out, secondary)
		}
	case models.PreferBoth:
		if primary != "" {
			out = append(out, primary)
		}
		if secondary != "" {
			out = append(out, secondary)
		}
	}
	return out
}

// addressKey is the value recipients are deduplicated on
func addressKey(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
