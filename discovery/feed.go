package discovery

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/pevans/newsharvest/scraper"
	"github.com/pevans/newsharvest/snapshot"
)

// ParseFeed parses an RSS or Atom document. gofeed detects the format.
func ParseFeed(data []byte) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	feed, err := fp.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}

// ExtractFeed converts feed items into listing entries. Links go through the
// same resolution as HTML listings.
func ExtractFeed(feed *gofeed.Feed, maxArticles int, baseURL, pageURL string) []snapshot.Article {
	if feed == nil {
		return []snapshot.Article{}
	}
	if maxArticles <= 0 {
		maxArticles = scraper.DefaultMaxArticles
	}

	articles := make([]snapshot.Article, 0, min(len(feed.Items), maxArticles))
	for _, item := range feed.Items {
		if len(articles) >= maxArticles {
			break
		}
		if item == nil {
			continue
		}

		// Atom entries sometimes carry the link only in Links
		link := item.Link
		if link == "" && len(item.Links) > 0 {
			link = item.Links[0]
		}

		articles = append(articles, snapshot.Article{
			Title: titleOr(normalizeText(item.Title), snapshot.NoTitleFound),
			URL:   ResolveLink(strings.TrimSpace(link), baseURL, pageURL),
		})
	}
	return articles
}
