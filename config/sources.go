package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/pevans/newsharvest/scraper"
	"gopkg.in/yaml.v3"
)

// Source types
const (
	SourceTypeHTML = "html"
	SourceTypeFeed = "feed"
)

// Custom errors for sources file validation
var (
	ErrNoSources         = errors.New("sources file contains no sources")
	ErrSourceMissingName = errors.New("source name is required")
	ErrSourceMissingURL  = errors.New("source url is required")
	ErrDuplicateSource   = errors.New("duplicate source name")
	ErrInvalidSourceName = errors.New("source name must contain only letters, digits, '.', '_' or '-'")
	ErrInvalidSourceURL  = errors.New("source url must be an absolute http or https URL")
	ErrInvalidSourceType = errors.New("source type must be html or feed")
)

var sourceNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Source is one entry of the sources file.
type Source struct {
	Name    string                 `yaml:"name" json:"name"`
	URL     string                 `yaml:"url" json:"url"`
	BaseURL string                 `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Type    string                 `yaml:"type,omitempty" json:"type,omitempty"`
	Enabled *bool                  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Scraper *scraper.ScraperConfig `yaml:"scraper,omitempty" json:"scraper,omitempty"`
}

// IsEnabled defaults to true when enabled is not set.
func (s Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// IsFeed reports whether the source URL is an RSS or Atom feed.
func (s Source) IsFeed() bool {
	return s.Type == SourceTypeFeed
}

// LoadSources reads and validates the sources file. The file may be YAML
// or JSON and may hold either a list of sources or a mapping with a
// sources key.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	sources, err := ParseSources(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sources, nil
}

// ParseSources decodes and validates sources file content.
func ParseSources(data []byte) ([]Source, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	var sources []Source
	if len(root.Content) > 0 {
		doc := root.Content[0]
		switch doc.Kind {
		case yaml.SequenceNode:
			if err := doc.Decode(&sources); err != nil {
				return nil, fmt.Errorf("failed to parse sources file: %w", err)
			}
		case yaml.MappingNode:
			var wrapped struct {
				Sources []Source `yaml:"sources"`
			}
			if err := doc.Decode(&wrapped); err != nil {
				return nil, fmt.Errorf("failed to parse sources file: %w", err)
			}
			sources = wrapped.Sources
		default:
			return nil, errors.New("failed to parse sources file: expected a list or a sources key")
		}
	}

	for i := range sources {
		sources[i] = normalizeSource(sources[i])
	}
	if err := ValidateSources(sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func normalizeSource(s Source) Source {
	s.Name = strings.TrimSpace(s.Name)
	s.URL = strings.TrimSpace(s.URL)
	s.BaseURL = strings.TrimSpace(s.BaseURL)
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	if s.Type == "" {
		s.Type = SourceTypeHTML
	}
	return s
}

// ValidateSources checks every source and name uniqueness.
func ValidateSources(sources []Source) error {
	if len(sources) == 0 {
		return ErrNoSources
	}

	seen := make(map[string]struct{}, len(sources))
	for i, s := range sources {
		if err := validateSource(s); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("sources[%d]: %w: %q", i, ErrDuplicateSource, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

func validateSource(s Source) error {
	if s.Name == "" {
		return ErrSourceMissingName
	}
	if !sourceNamePattern.MatchString(s.Name) || s.Name == "." || s.Name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidSourceName, s.Name)
	}
	if s.URL == "" {
		return ErrSourceMissingURL
	}
	if !isHTTPURL(s.URL) {
		return fmt.Errorf("%w: %q", ErrInvalidSourceURL, s.URL)
	}
	if s.BaseURL != "" && !isHTTPURL(s.BaseURL) {
		return fmt.Errorf("%w: base_url %q", ErrInvalidSourceURL, s.BaseURL)
	}
	if s.Type != SourceTypeHTML && s.Type != SourceTypeFeed {
		return fmt.Errorf("%w: %q", ErrInvalidSourceType, s.Type)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
