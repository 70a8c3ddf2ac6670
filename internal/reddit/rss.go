package reddit

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"quirkfeed/internal/extractors"
)

// fetchRSS reads the channel's hot feed. Entries carry no score or comment
// count, so those stay zero.
func (c *Client) fetchRSS(ctx context.Context, name string, limit int) ([]Post, error) {
	u := fmt.Sprintf("%s/r/%s/hot/.rss", c.opts.BaseURL, url.PathEscape(name))
	body, err := c.fetcher.GetBody(ctx, u, map[string]string{"Accept": "application/atom+xml, application/rss+xml"})
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	posts := make([]Post, 0, limit)
	for _, item := range feed.Items {
		p, ok := postFromItem(item, name)
		if !ok {
			continue
		}
		posts = append(posts, p)
		if len(posts) >= limit {
			break
		}
	}
	return posts, nil
}

func postFromItem(item *gofeed.Item, channel string) (Post, bool) {
	if item == nil || item.Link == "" {
		return Post{}, false
	}

	id := strings.TrimPrefix(item.GUID, "t3_")
	if id == "" {
		id = extractors.GenerateGUIDFromURL(item.Link)
	}

	p := Post{
		ID:        id,
		Title:     item.Title,
		Subreddit: channel,
		URL:       item.Link,
		Permalink: item.Link,
		Thumbnail: mediaThumbnail(item),
		ImageURL:  itemImage(item),
	}
	if item.Author != nil {
		p.Author = strings.TrimPrefix(item.Author.Name, "/u/")
	}
	if item.PublishedParsed != nil {
		p.Created = float64(item.PublishedParsed.Unix())
	}
	if p.ImageURL == "" {
		return Post{}, false
	}
	return p, true
}

func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	base, _ := url.Parse(item.Link)
	content := item.Content
	if content == "" {
		content = item.Description
	}
	if images := extractors.ImagesFromHTML(content, base); len(images) > 0 {
		return images[0]
	}
	return ""
}

func mediaThumbnail(item *gofeed.Item) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	for _, ext := range media["thumbnail"] {
		if u := ext.Attrs["url"]; u != "" {
			return u
		}
	}
	return ""
}
