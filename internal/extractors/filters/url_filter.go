// Package filters decides which linked pages are worth probing for an image.
package filters

import (
	"net/url"
	"strings"
)

// URLFilter defines probing rules for one domain and its subdomains.
type URLFilter struct {
	Domain       string
	AllowedPaths []string // path prefixes; empty allows every path
	BlockedPaths []string // path prefixes; takes priority over AllowedPaths
}

// FilterRegistry manages URL filtering rules
type FilterRegistry struct {
	filters []URLFilter
}

// NewFilterRegistry creates a new filter registry
func NewFilterRegistry() *FilterRegistry {
	return &FilterRegistry{
		filters: make([]URLFilter, 0),
	}
}

// DefaultFilters skips albums, galleries and video hosts, none of which
// resolve to a single still image.
func DefaultFilters() *FilterRegistry {
	r := NewFilterRegistry()
	r.Register(URLFilter{Domain: "imgur.com", BlockedPaths: []string{"/a/", "/gallery/"}})
	r.Register(URLFilter{Domain: "reddit.com", BlockedPaths: []string{"/gallery/", "/r/"}})
	r.Register(URLFilter{Domain: "v.redd.it", BlockedPaths: []string{"/"}})
	r.Register(URLFilter{Domain: "youtube.com", BlockedPaths: []string{"/"}})
	r.Register(URLFilter{Domain: "youtu.be", BlockedPaths: []string{"/"}})
	r.Register(URLFilter{Domain: "twitch.tv", BlockedPaths: []string{"/"}})
	return r
}

// Register adds a new URL filter
func (r *FilterRegistry) Register(filter URLFilter) {
	r.filters = append(r.filters, filter)
}

// ShouldProcess checks if a URL should be probed based on registered filters.
// Only http(s) URLs are ever probed.
func (r *FilterRegistry) ShouldProcess(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	path := u.Path
	if path == "" {
		path = "/"
	}

	// Find matching filter for this URL's domain
	var matchedFilter *URLFilter
	for i := range r.filters {
		d := r.filters[i].Domain
		if host == d || strings.HasSuffix(host, "."+d) {
			matchedFilter = &r.filters[i]
			break
		}
	}

	// If no filter matches, allow processing
	if matchedFilter == nil {
		return true
	}

	// Check blocked paths first (highest priority)
	for _, blocked := range matchedFilter.BlockedPaths {
		if strings.HasPrefix(path, blocked) {
			return false
		}
	}

	// If no allowed paths specified, allow all (except blocked)
	if len(matchedFilter.AllowedPaths) == 0 {
		return true
	}

	for _, allowed := range matchedFilter.AllowedPaths {
		if strings.HasPrefix(path, allowed) {
			return true
		}
	}

	return false
}
