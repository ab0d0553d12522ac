package scraper

// Strategy is one step of the listing fallback chain. When Container is set
// the strategy applies as soon as the container exists, and only Items inside
// the first container are candidates. Without a container the strategy
// applies when Items matches anything in the document.
type Strategy struct {
	Name      string `json:"name" yaml:"name"`
	Container string `json:"container,omitempty" yaml:"container,omitempty"`
	Items     string `json:"items" yaml:"items"`
}

// ListConfig defines how articles are discovered on a listing page.
type ListConfig struct {
	Strategies []Strategy `json:"strategies,omitempty" yaml:"strategies,omitempty"`
	// TitleMarker marks the preferred element holding the title link.
	TitleMarker string `json:"title_marker,omitempty" yaml:"title_marker,omitempty"`
	// TitleFallback is searched when no TitleMarker element exists.
	TitleFallback string `json:"title_fallback,omitempty" yaml:"title_fallback,omitempty"`
	MaxArticles   int    `json:"max_articles,omitempty" yaml:"max_articles,omitempty"`
}

// ArticleConfig defines how title and body are pulled from an article page.
type ArticleConfig struct {
	TitleSelector    string   `json:"title_selector,omitempty" yaml:"title_selector,omitempty"`
	ContentSelectors []string `json:"content_selectors,omitempty" yaml:"content_selectors,omitempty"`
	MaxContentChars  int      `json:"max_content_chars,omitempty" yaml:"max_content_chars,omitempty"`
}

// ScraperConfig groups the listing and article rules for a source.
type ScraperConfig struct {
	List    ListConfig    `json:"list" yaml:"list"`
	Article ArticleConfig `json:"article" yaml:"article"`
}

const (
	DefaultMaxArticles     = 10
	DefaultMaxContentChars = 5000
)

// DefaultStrategies returns the listing chain in priority order. The archive
// container keeps carousel and sidebar items out of the result.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "archive", Container: "div.malaymail-news-archive", Items: "div.article-item"},
		{Name: "article-tag", Items: "article"},
		{Name: "article-item", Items: "div.article-item"},
		{Name: "class-fallback", Items: "div.article, div.news-item, div.post"},
	}
}

// DefaultListConfig returns the listing rules used when a source sets none.
func DefaultListConfig() ListConfig {
	return ListConfig{
		Strategies:    DefaultStrategies(),
		TitleMarker:   ".article-title",
		TitleFallback: "h2, h3, h4, a",
		MaxArticles:   DefaultMaxArticles,
	}
}

// DefaultArticleConfig returns the article rules used when a source sets
// none. Content selectors are tried in order; the class set is a single
// selector so the first match in document order wins.
func DefaultArticleConfig() ArticleConfig {
	return ArticleConfig{
		TitleSelector:    "h1",
		ContentSelectors: []string{"article", ".article-body, .content, .post-content"},
		MaxContentChars:  DefaultMaxContentChars,
	}
}

// Default returns the full default rule set.
func Default() ScraperConfig {
	return ScraperConfig{
		List:    DefaultListConfig(),
		Article: DefaultArticleConfig(),
	}
}

// Merge returns base with every non-zero field of override applied.
func Merge(base ScraperConfig, override *ScraperConfig) ScraperConfig {
	if override == nil {
		return base
	}

	out := base
	if len(override.List.Strategies) > 0 {
		out.List.Strategies = append([]Strategy(nil), override.List.Strategies...)
	}
	if override.List.TitleMarker != "" {
		out.List.TitleMarker = override.List.TitleMarker
	}
	if override.List.TitleFallback != "" {
		out.List.TitleFallback = override.List.TitleFallback
	}
	if override.List.MaxArticles > 0 {
		out.List.MaxArticles = override.List.MaxArticles
	}
	if override.Article.TitleSelector != "" {
		out.Article.TitleSelector = override.Article.TitleSelector
	}
	if len(override.Article.ContentSelectors) > 0 {
		out.Article.ContentSelectors = append([]string(nil), override.Article.ContentSelectors...)
	}
	if override.Article.MaxContentChars > 0 {
		out.Article.MaxContentChars = override.Article.MaxContentChars
	}
	return out
}
