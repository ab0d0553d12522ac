package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultListConfig verifies the listing chain order and caps
func TestDefaultListConfig(t *testing.T) {
	cfg := DefaultListConfig()

	require.Len(t, cfg.Strategies, 4)
	assert.Equal(t, "div.malaymail-news-archive", cfg.Strategies[0].Container, "archive container should be tried first")
	assert.Equal(t, "article", cfg.Strategies[1].Items)
	assert.Equal(t, "div.article-item", cfg.Strategies[2].Items)
	assert.Empty(t, cfg.Strategies[3].Container)
	assert.Equal(t, 10, cfg.MaxArticles)
	assert.Equal(t, ".article-title", cfg.TitleMarker)
}

// TestDefaultArticleConfig verifies the detail defaults
func TestDefaultArticleConfig(t *testing.T) {
	cfg := DefaultArticleConfig()

	assert.Equal(t, "h1", cfg.TitleSelector)
	assert.Equal(t, []string{"article", ".article-body, .content, .post-content"}, cfg.ContentSelectors)
	assert.Equal(t, 5000, cfg.MaxContentChars)
}

// TestMerge_NilOverride verifies the base is returned untouched
func TestMerge_NilOverride(t *testing.T) {
	base := Default()

	assert.Equal(t, base, Merge(base, nil))
}

// TestMerge_PartialOverride verifies only set fields replace defaults
func TestMerge_PartialOverride(t *testing.T) {
	override := &ScraperConfig{
		List: ListConfig{
			Strategies:  []Strategy{{Name: "cards", Items: "div.card"}},
			MaxArticles: 25,
		},
		Article: ArticleConfig{
			ContentSelectors: []string{"div.story-body"},
		},
	}

	got := Merge(Default(), override)

	require.Len(t, got.List.Strategies, 1)
	assert.Equal(t, "div.card", got.List.Strategies[0].Items)
	assert.Equal(t, 25, got.List.MaxArticles)
	assert.Equal(t, ".article-title", got.List.TitleMarker, "unset marker should keep default")
	assert.Equal(t, "h1", got.Article.TitleSelector, "unset title selector should keep default")
	assert.Equal(t, []string{"div.story-body"}, got.Article.ContentSelectors)
	assert.Equal(t, 5000, got.Article.MaxContentChars)
}

// TestMerge_DoesNotAliasOverride verifies the result owns its slices
func TestMerge_DoesNotAliasOverride(t *testing.T) {
	override := &ScraperConfig{List: ListConfig{Strategies: []Strategy{{Items: "li"}}}}

	got := Merge(Default(), override)
	override.List.Strategies[0].Items = "changed"

	assert.Equal(t, "li", got.List.Strategies[0].Items)
}
