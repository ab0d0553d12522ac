package discovery

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/newsharvest/scraper"
	"github.com/pevans/newsharvest/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := ParseHTML(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

// TestExtractListing_ArchiveContainer verifies only items inside the archive
// container are used
func TestExtractListing_ArchiveContainer(t *testing.T) {
	html := `<html><body>
		<div class="carousel"><div class="article-item"><h2><a href="/carousel">Carousel</a></h2></div></div>
		<div class="malaymail-news-archive">
			<div class="article-item"><h2 class="article-title"><a href="/news/one">One</a></h2></div>
			<div class="article-item"><h2 class="article-title"><a href="/news/two">Two</a></h2></div>
		</div>
	</body></html>`

	got := ExtractListing(mustParse(t, html), scraper.DefaultListConfig(), "https://www.malaymail.com", "https://www.malaymail.com/morearticles")

	assert.Equal(t, []snapshot.Article{
		{Title: "One", URL: "https://www.malaymail.com/news/one"},
		{Title: "Two", URL: "https://www.malaymail.com/news/two"},
	}, got)
}

// TestExtractListing_EmptyContainer verifies an existing container with no
// items stops the chain
func TestExtractListing_EmptyContainer(t *testing.T) {
	html := `<div class="malaymail-news-archive"></div>
		<article><h2><a href="https://x.com/a">A</a></h2></article>`

	got := ExtractListing(mustParse(t, html), scraper.DefaultListConfig(), "", "https://x.com/")

	assert.Empty(t, got)
}

// TestExtractListing_ArticleTags verifies the article-tag fallback
func TestExtractListing_ArticleTags(t *testing.T) {
	html := `<article><h3>  First
		story </h3><a href="https://x.com/1">read</a></article>
		<article><p>no heading</p></article>`

	got := ExtractListing(mustParse(t, html), scraper.DefaultListConfig(), "", "https://x.com/")

	require.Len(t, got, 2)
	assert.Equal(t, snapshot.Article{Title: "First story", URL: "https://x.com/1"}, got[0])
	assert.Equal(t, snapshot.Article{Title: snapshot.NoTitleFound, URL: snapshot.NoLink}, got[1])
}

// TestExtractListing_TitleFallbackDocumentOrder verifies the first heading or
// link in document order supplies the title
func TestExtractListing_TitleFallbackDocumentOrder(t *testing.T) {
	html := `<div class="post"><a href="/p">Link text</a><h2>Heading</h2></div>`

	got := ExtractListing(mustParse(t, html), scraper.DefaultListConfig(), "", "https://x.com/section/")

	require.Len(t, got, 1)
	assert.Equal(t, "Link text", got[0].Title)
	assert.Equal(t, "https://x.com/p", got[0].URL)
}

// TestExtractListing_TitleMarkerWithoutLink verifies the marker text is used
// when it has no link
func TestExtractListing_TitleMarkerWithoutLink(t *testing.T) {
	html := `<div class="article-item"><span class="article-title">Plain title</span><a href="/x">more</a></div>`

	got := ExtractListing(mustParse(t, html), scraper.DefaultListConfig(), "https://x.com", "https://x.com/")

	require.Len(t, got, 1)
	assert.Equal(t, snapshot.Article{Title: "Plain title", URL: snapshot.NoLink}, got[0])
}

// TestExtractListing_Cap verifies at most MaxArticles entries are returned
func TestExtractListing_Cap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, `<div class="article-item"><h2 class="article-title"><a href="/n/%d">T%d</a></h2></div>`, i, i)
	}

	got := ExtractListing(mustParse(t, b.String()), scraper.DefaultListConfig(), "https://x.com", "https://x.com/")

	require.Len(t, got, 10)
	assert.Equal(t, "T0", got[0].Title)
	assert.Equal(t, "https://x.com/n/9", got[9].URL)
}

// TestExtractListing_NoStrategyApplies verifies an empty result
func TestExtractListing_NoStrategyApplies(t *testing.T) {
	got := ExtractListing(mustParse(t, `<p>nothing here</p>`), scraper.DefaultListConfig(), "", "https://x.com/")

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// TestExtractListing_Idempotent verifies repeated extraction gives the same
// result
func TestExtractListing_Idempotent(t *testing.T) {
	doc := mustParse(t, `<article><h2><a href="/a">A</a></h2></article>`)
	cfg := scraper.DefaultListConfig()

	assert.Equal(t, ExtractListing(doc, cfg, "", "https://x.com/"), ExtractListing(doc, cfg, "", "https://x.com/"))
}

// TestResolveLink verifies relative link handling
func TestResolveLink(t *testing.T) {
	tests := []struct {
		name string
		href string
		base string
		page string
		want string
	}{
		{"absolute passes through", "https://other.com/a", "https://x.com", "", "https://other.com/a"},
		{"base with leading slash", "/news/a", "https://x.com", "", "https://x.com/news/a"},
		{"base with trailing slash", "news/a", "https://x.com/", "", "https://x.com/news/a"},
		{"both slashes", "/news/a", "https://x.com/", "", "https://x.com/news/a"},
		{"page relative", "b.html", "", "https://x.com/dir/index.html", "https://x.com/dir/b.html"},
		{"page root relative", "/b", "", "https://x.com/dir/index.html", "https://x.com/b"},
		{"protocol relative", "//cdn.x.com/a", "", "https://x.com/", "https://cdn.x.com/a"},
		{"empty href", "  ", "https://x.com", "", snapshot.NoLink},
		{"no base and no page", "/a", "", "", snapshot.NoLink},
		{"non-http scheme", "mailto:a@x.com", "", "https://x.com/", snapshot.NoLink},
		{"fragment only", "#top", "", "https://x.com/", snapshot.NoLink},
		{"base with fragment only", "#top", "https://ex.com", "", snapshot.NoLink},
		{"base with javascript", "javascript:void(0)", "https://ex.com", "", snapshot.NoLink},
		{"base with mailto", "mailto:desk@ex.com", "https://ex.com", "https://ex.com/news", snapshot.NoLink},
		{"base with protocol relative", "//cdn.ex.com/x", "https://ex.com", "", "https://cdn.ex.com/x"},
		{"base with colon later in path", "news/a:b", "https://ex.com", "", "https://ex.com/news/a:b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveLink(tt.href, tt.base, tt.page))
		})
	}
}

// TestExtractDetail verifies title and content extraction
func TestExtractDetail(t *testing.T) {
	html := `<html><body><h1> Big
		news </h1><div class="content">ignored</div><article><p>Para one.</p>
		<p>Para   two.</p></article></body></html>`

	got := ExtractDetail(mustParse(t, html), scraper.DefaultArticleConfig())

	assert.Equal(t, "Big news", got.Title)
	assert.Equal(t, "Para one. Para two.", got.Content)
}

// TestExtractDetail_ClassFallbackDocumentOrder verifies the first class match
// in document order is used when there is no article element
func TestExtractDetail_ClassFallbackDocumentOrder(t *testing.T) {
	html := `<div class="post-content">first</div><div class="article-body">second</div>`

	got := ExtractDetail(mustParse(t, html), scraper.DefaultArticleConfig())

	assert.Equal(t, snapshot.NoTitle, got.Title)
	assert.Equal(t, "first", got.Content)
}

// TestExtractDetail_NoBody verifies content is empty when nothing matches
func TestExtractDetail_NoBody(t *testing.T) {
	got := ExtractDetail(mustParse(t, `<h1>Only title</h1><p>loose text</p>`), scraper.DefaultArticleConfig())

	assert.Equal(t, "Only title", got.Title)
	assert.Equal(t, "", got.Content)
}

// TestExtractDetail_Truncates verifies the content cap counts characters
func TestExtractDetail_Truncates(t *testing.T) {
	html := "<article>" + strings.Repeat("é", 6000) + "</article>"

	got := ExtractDetail(mustParse(t, html), scraper.DefaultArticleConfig())

	assert.Equal(t, 5000, len([]rune(got.Content)))
}
