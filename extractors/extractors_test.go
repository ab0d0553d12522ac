package extractors

import (
	"testing"

	"github.com/pevans/newsharvest/snapshot"
	"github.com/stretchr/testify/assert"
)

var testListing = snapshot.Listing{
	SourceURL: "https://example.com/news",
	Articles: []snapshot.Article{
		{Title: "A", URL: "https://example.com/a"},
		{Title: "B", URL: snapshot.NoLink},
		{Title: "C", URL: "https://example.com/c"},
	},
}

// TestDefault verifies all URLs are returned in order, sentinels included
func TestDefault(t *testing.T) {
	assert.Equal(t, []string{"https://example.com/a", snapshot.NoLink, "https://example.com/c"}, Default(testListing))
}

// TestDefault_Empty verifies an empty listing yields an empty slice
func TestDefault_Empty(t *testing.T) {
	got := Default(snapshot.Listing{})

	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// TestRegistry_Get verifies lookup by normalized name
func TestRegistry_Get(t *testing.T) {
	r := DefaultRegistry()

	assert.Equal(t, Default(testListing), r.Get("  MalayMail ")(testListing))
	assert.Equal(t, []string{"malaymail"}, r.Names())
}

// TestRegistry_UnknownFallsBack verifies unknown names get Default
func TestRegistry_UnknownFallsBack(t *testing.T) {
	r := NewRegistry()

	got := r.Get("unknown")(testListing)

	assert.Len(t, got, 3)
}

// TestRegistry_Register verifies custom extractors and ignored inputs
func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("firstonly", func(l snapshot.Listing) []string {
		return []string{l.Articles[0].URL}
	})
	r.Register("", Default)
	r.Register("nilfn", nil)

	assert.Equal(t, []string{"https://example.com/a"}, r.Get("FirstOnly")(testListing))
	assert.Equal(t, []string{"firstonly"}, r.Names())
}
