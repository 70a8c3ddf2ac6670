package extractors

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"quirkfeed/internal/fetch"
)

// PageFetcher is the part of fetch.Client the extractors need.
type PageFetcher interface {
	GetBody(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

var _ PageFetcher = (*fetch.Client)(nil)

// DefaultExtractor uses go-readability primarily and goquery as a fallback.
type DefaultExtractor struct {
	client PageFetcher
}

// NewDefaultExtractor constructs a DefaultExtractor.
func NewDefaultExtractor(client PageFetcher) *DefaultExtractor {
	return &DefaultExtractor{client: client}
}

// ExtractImage fetches pageURL and returns its lead image: readability's
// pick first, then Open Graph / Twitter Card meta tags, then the first
// usable <img>.
func (d *DefaultExtractor) ExtractImage(ctx context.Context, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	body, err := d.client.GetBody(ctx, pageURL, map[string]string{"Accept": "text/html"})
	if err != nil {
		return "", err
	}

	if article, err := readability.FromReader(bytes.NewReader(body), base); err == nil {
		if img := resolveImage(base, article.Image); img != "" {
			return img, nil
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if imgs := imagesFromMetaTags(doc); len(imgs) > 0 {
		if img := resolveImage(base, imgs[0]); img != "" {
			return img, nil
		}
	}
	for _, src := range imagesFromBody(doc) {
		if img := resolveImage(base, src); img != "" {
			return img, nil
		}
	}
	return "", ErrNoImage
}

// ImagesFromHTML returns every image reference in an HTML fragment, meta
// tags first, resolved against base when it is non-nil.
func ImagesFromHTML(html string, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var out []string
	for _, src := range append(imagesFromMetaTags(doc), imagesFromBody(doc)...) {
		if img := resolveImage(base, src); img != "" {
			out = append(out, img)
		}
	}
	return out
}

// imagesFromMetaTags extracts image URLs from Open Graph and Twitter Card meta tags.
func imagesFromMetaTags(doc *goquery.Document) []string {
	var images []string

	// Open Graph image
	if ogImage, exists := doc.Find(`meta[property="og:image"]`).Attr("content"); exists && ogImage != "" {
		images = append(images, ogImage)
	}

	// Twitter Card image
	if twitterImage, exists := doc.Find(`meta[name="twitter:image"]`).Attr("content"); exists && twitterImage != "" {
		images = append(images, twitterImage)
	}

	// Article image (schema.org)
	if articleImage, exists := doc.Find(`meta[property="article:image"]`).Attr("content"); exists && articleImage != "" {
		images = append(images, articleImage)
	}

	return images
}

// imagesFromBody collects all non-empty <img src="..."> values.
func imagesFromBody(doc *goquery.Document) []string {
	var images []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok && src != "" {
			images = append(images, src)
		}
	})
	return images
}

// resolveImage makes src absolute and drops data URLs and junk.
func resolveImage(base *url.URL, src string) string {
	src = strings.TrimSpace(src)
	// Skip data URLs and very short URLs
	if src == "" || strings.HasPrefix(src, "data:") || len(src) < 6 {
		return ""
	}
	src = strings.ReplaceAll(src, "&amp;", "&")

	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	} else if ref.Scheme == "" && ref.Host != "" {
		// protocol-relative
		ref.Scheme = "https"
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}
