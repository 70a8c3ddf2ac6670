package extractors

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrNoImage is returned when a page offers no usable image reference.
var ErrNoImage = errors.New("no image found")

// ErrNoExtractor is returned by the stub used when nothing is registered.
var ErrNoExtractor = errors.New("no extractor registered")

// Extractor finds the lead image of a linked page.
type Extractor interface {
	ExtractImage(ctx context.Context, pageURL string) (string, error)
}

// Registry holds registered extractors and default fallback.
type Registry struct {
	defaultExtractor Extractor
	domains          map[string]Extractor
}

func NewRegistry() *Registry {
	return &Registry{domains: make(map[string]Extractor)}
}

func (r *Registry) RegisterDefault(e Extractor) {
	r.defaultExtractor = e
}

// RegisterDomain binds e to domain and its subdomains.
func (r *Registry) RegisterDomain(domain string, e Extractor) {
	r.domains[strings.ToLower(domain)] = e
}

// ForURL returns the extractor of the most specific registered domain that
// matches the URL's host, else the default.
func (r *Registry) ForURL(rawURL string) Extractor {
	if u, err := url.Parse(rawURL); err == nil {
		host := strings.ToLower(u.Hostname())
		for host != "" {
			if e, ok := r.domains[host]; ok {
				return e
			}
			dot := strings.IndexByte(host, '.')
			if dot < 0 {
				break
			}
			host = host[dot+1:]
		}
	}
	if r.defaultExtractor != nil {
		return r.defaultExtractor
	}
	return defaultExtractorStub{}
}

// defaultExtractorStub is a last-resort extractor.
type defaultExtractorStub struct{}

func (defaultExtractorStub) ExtractImage(context.Context, string) (string, error) {
	return "", ErrNoExtractor
}
