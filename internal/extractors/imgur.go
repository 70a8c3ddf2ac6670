package extractors

import (
	"context"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var imgurID = regexp.MustCompile(`^[A-Za-z0-9]{5,10}$`)

var imageExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)$`)

// ImgurExtractor maps single-image imgur pages onto the direct i.imgur.com
// file without fetching anything.
type ImgurExtractor struct{}

func NewImgurExtractor() *ImgurExtractor {
	return &ImgurExtractor{}
}

func (ImgurExtractor) ExtractImage(_ context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	p := strings.Trim(u.Path, "/")
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "gallery/") || strings.Contains(p, "/") {
		return "", ErrNoImage
	}
	if imageExt.MatchString(p) {
		return "https://i.imgur.com/" + p, nil
	}
	id := strings.TrimSuffix(p, path.Ext(p))
	if !imgurID.MatchString(id) {
		return "", ErrNoImage
	}
	return "https://i.imgur.com/" + id + ".jpg", nil
}

// IsImageURL reports whether the URL path ends in a known image extension.
func IsImageURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return imageExt.MatchString(u.Path)
}
