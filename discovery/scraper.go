package discovery

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsharvest/scraper"
	"github.com/pevans/newsharvest/snapshot"
)

// ParseHTML parses an HTML page into a goquery document.
func ParseHTML(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ExtractListing pulls article titles and links out of a listing page. The
// first strategy in cfg that applies decides which elements are articles;
// later strategies are not consulted. At most cfg.MaxArticles entries are
// returned, in document order.
func ExtractListing(doc *goquery.Document, cfg scraper.ListConfig, baseURL, pageURL string) []snapshot.Article {
	items := selectItems(doc, cfg.Strategies)
	if items == nil {
		return []snapshot.Article{}
	}

	limit := cfg.MaxArticles
	if limit <= 0 {
		limit = scraper.DefaultMaxArticles
	}

	articles := make([]snapshot.Article, 0, min(items.Length(), limit))
	items.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(articles) >= limit {
			return false
		}
		title, href := extractItem(s, cfg)
		articles = append(articles, snapshot.Article{
			Title: title,
			URL:   ResolveLink(href, baseURL, pageURL),
		})
		return true
	})

	return articles
}

// selectItems walks the strategy chain and returns the candidate elements of
// the first strategy that applies, or nil when none does.
func selectItems(doc *goquery.Document, strategies []scraper.Strategy) *goquery.Selection {
	for _, st := range strategies {
		if st.Items == "" {
			continue
		}

		if st.Container != "" {
			container := doc.Find(st.Container).First()
			if container.Length() == 0 {
				continue
			}
			return container.Find(st.Items)
		}

		if items := doc.Find(st.Items); items.Length() > 0 {
			return items
		}
	}
	return nil
}

// extractItem returns the title and raw href of one listing entry. An empty
// href means the entry has no usable link.
func extractItem(s *goquery.Selection, cfg scraper.ListConfig) (string, string) {
	if cfg.TitleMarker != "" {
		if marker := s.Find(cfg.TitleMarker).First(); marker.Length() > 0 {
			link := marker.Find("a[href]").First()
			if link.Length() == 0 {
				return titleOr(normalizeText(marker.Text()), snapshot.NoTitleFound), ""
			}
			href, _ := link.Attr("href")
			return titleOr(normalizeText(link.Text()), snapshot.NoTitleFound), strings.TrimSpace(href)
		}
	}

	title := snapshot.NoTitleFound
	if cfg.TitleFallback != "" {
		title = titleOr(normalizeText(s.Find(cfg.TitleFallback).First().Text()), snapshot.NoTitleFound)
	}

	href, _ := s.Find("a[href]").First().Attr("href")
	return title, strings.TrimSpace(href)
}

// ResolveLink turns an href from a listing page into an absolute URL.
// Plain relative paths joined to a base URL get exactly one slash at the
// seam. Without a base URL they are resolved against the page URL, as are
// protocol-relative and scheme-bearing hrefs in either case. Fragment-only
// links and links that do not end up http(s) become snapshot.NoLink.
func ResolveLink(href, baseURL, pageURL string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return snapshot.NoLink
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}

	root := pageURL
	if baseURL != "" {
		if !strings.HasPrefix(href, "//") && !hasScheme(href) {
			return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(href, "/")
		}
		root = baseURL
	}

	page, err := url.Parse(root)
	if err != nil || !page.IsAbs() {
		return snapshot.NoLink
	}
	ref, err := url.Parse(href)
	if err != nil {
		return snapshot.NoLink
	}

	resolved := page.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return snapshot.NoLink
	}
	return resolved.String()
}

// hasScheme reports whether href starts with "scheme:", such as mailto: or
// javascript:.
func hasScheme(href string) bool {
	for i, c := range href {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		case c == ':':
			return i > 0
		default:
			return false
		}
	}
	return false
}

// ExtractDetail pulls the title and body text from an article page. Content
// comes from the first selector in cfg.ContentSelectors that matches and is
// cut to cfg.MaxContentChars characters.
func ExtractDetail(doc *goquery.Document, cfg scraper.ArticleConfig) snapshot.Detail {
	title := ""
	if cfg.TitleSelector != "" {
		title = normalizeText(doc.Find(cfg.TitleSelector).First().Text())
	}

	content := ""
	for _, sel := range cfg.ContentSelectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			content = normalizeText(node.Text())
			break
		}
	}

	limit := cfg.MaxContentChars
	if limit <= 0 {
		limit = scraper.DefaultMaxContentChars
	}

	return snapshot.Detail{
		Title:   titleOr(title, snapshot.NoTitle),
		Content: truncateRunes(content, limit),
	}
}

// normalizeText collapses every whitespace run to a single space.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func titleOr(title, fallback string) string {
	if title == "" {
		return fallback
	}
	return title
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
