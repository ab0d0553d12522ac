package snapshot

import (
	"bytes"
	"encoding/json"
	"time"
)

// Placeholder values written instead of failing when an element is missing.
const (
	NoTitleFound = "No title found"
	NoLink       = "No link"
	NoTitle      = "No title"
)

// Article is a single title/link pair found on a listing page.
type Article struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// HasLink reports whether the article carries a usable link.
func (a Article) HasLink() bool {
	return a.URL != "" && a.URL != NoLink
}

// Listing is the snapshot of one listing page taken during a run.
type Listing struct {
	ScrapedAt time.Time `json:"scraped_at"`
	SourceURL string    `json:"source_url"`
	Articles  []Article `json:"articles"`
}

// Detail holds what was extracted from a single article page.
type Detail struct {
	ScrapedAt time.Time `json:"scraped_at"`
	SourceURL string    `json:"source_url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	HTML      string    `json:"html,omitempty"`
}

// Marshal encodes v as indented JSON, leaving non-ASCII and HTML characters
// unescaped.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
