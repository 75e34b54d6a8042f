package exchange

import (
	"strings"

	"github.com/gosimple/slug"
)

// Team slug bounds, in characters.
const (
	MinSlugLen = 3
	MaxSlugLen = 50
)

// ValidSlug reports whether s is a canonical team slug: lowercase ASCII letters, digits
// and single hyphens, within [MinSlugLen, MaxSlugLen].
func ValidSlug(s string) bool {
	if len(s) < MinSlugLen || len(s) > MaxSlugLen {
		return false
	}
	return slug.IsSlug(s) && !strings.Contains(s, "--")
}

// MakeSlug derives a canonical slug from a display name, truncated to MaxSlugLen.
func MakeSlug(name string) string {
	s := slug.Make(name)
	if len(s) > MaxSlugLen {
		s = strings.TrimRight(s[:MaxSlugLen], "-")
	}
	return s
}
