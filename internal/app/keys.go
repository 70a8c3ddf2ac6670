package app

import "strconv"

// Cache domains.
const (
	DomainTheme = "theme"
	DomainFeed  = "feed"
)

// CacheKey names one slot in the Store: a domain and an optional variant.
// Two keys are the same slot only if both parts match.
type CacheKey struct {
	Domain  string
	Variant string
}

func (k CacheKey) String() string {
	if k.Variant == "" {
		return k.Domain
	}
	return k.Domain + "_" + k.Variant
}

// ThemeKey is the single key of the theme domain.
func ThemeKey() CacheKey {
	return CacheKey{Domain: DomainTheme}
}

// FeedKey keys a feed batch by its requested size.
func FeedKey(limit int) CacheKey {
	return CacheKey{Domain: DomainFeed, Variant: strconv.Itoa(limit)}
}
