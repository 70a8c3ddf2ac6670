package reddit

import (
	"html"
	"strings"

	"quirkfeed/internal/extractors"
)

// Post is one image post pulled from a channel.
type Post struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	URL         string  `json:"url"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Thumbnail   string  `json:"thumbnail,omitempty"`
	Score       int     `json:"score"`
	NumComments int     `json:"numComments"`
	Created     float64 `json:"created"`
	Permalink   string  `json:"permalink"`
	IsVideo     bool    `json:"isVideo"`
}

type listing struct {
	Data struct {
		Children []struct {
			Data rawPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type rawPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	URL         string  `json:"url"`
	Thumbnail   string  `json:"thumbnail"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Permalink   string  `json:"permalink"`
	IsSelf      bool    `json:"is_self"`
	IsVideo     bool    `json:"is_video"`
	IsGallery   bool    `json:"is_gallery"`
	Over18      bool    `json:"over_18"`
	Preview     *struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
}

// transformPost converts a listing entry. ok is false for posts that can
// never carry a still image: text posts, videos, galleries, NSFW.
// The returned post may still lack ImageURL if only a page probe could
// find one.
func transformPost(p rawPost) (Post, bool) {
	if p.IsSelf || p.IsVideo || p.IsGallery || p.Over18 {
		return Post{}, false
	}
	if p.ID == "" {
		return Post{}, false
	}

	post := Post{
		ID:          p.ID,
		Title:       html.UnescapeString(p.Title),
		Author:      p.Author,
		Subreddit:   p.Subreddit,
		URL:         p.URL,
		ImageURL:    imageURL(p),
		Thumbnail:   thumbnail(p.Thumbnail),
		Score:       p.Score,
		NumComments: p.NumComments,
		Created:     p.CreatedUTC,
		Permalink:   permalink(p.Permalink),
		IsVideo:     p.IsVideo,
	}
	return post, true
}

// imageURL resolves the image reference of a listing entry without any
// network access.
func imageURL(p rawPost) string {
	// direct image link
	if p.URL != "" && extractors.IsImageURL(p.URL) {
		return p.URL
	}

	// reddit-hosted preview, entity-encoded in the listing
	if p.Preview != nil && len(p.Preview.Images) > 0 && p.Preview.Images[0].Source.URL != "" {
		return html.UnescapeString(p.Preview.Images[0].Source.URL)
	}

	if strings.Contains(p.URL, "imgur.com") && !strings.Contains(p.URL, "/a/") && !strings.Contains(p.URL, "/gallery/") {
		if !extractors.IsImageURL(p.URL) {
			return p.URL + ".jpg"
		}
		return p.URL
	}

	if strings.Contains(p.URL, "i.redd.it") {
		return p.URL
	}

	return ""
}

func thumbnail(t string) string {
	switch t {
	case "", "self", "default", "nsfw", "spoiler", "image":
		return ""
	}
	if !strings.HasPrefix(t, "http") {
		return ""
	}
	return html.UnescapeString(t)
}

func permalink(p string) string {
	if p == "" || strings.HasPrefix(p, "http") {
		return p
	}
	return "https://reddit.com" + p
}
