package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pevans/newsharvest/snapshot"
)

const (
	// TimestampLayout names listing snapshot files.
	TimestampLayout = "2006-01-02_15-04-05"

	listingDir    = "original"
	detailDir     = "additional"
	listingPrefix = "scrape_"
	fileExt       = ".json"
)

// ErrNotFound is returned when a requested source, listing or detail does
// not exist.
var ErrNotFound = errors.New("not found")

// Archive stores listing snapshots and article details as JSON files under
// a root directory, one subdirectory per source.
type Archive struct {
	root string
}

// ListingFile describes one saved listing snapshot.
type ListingFile struct {
	Name      string    `json:"name"`
	ScrapedAt time.Time `json:"scraped_at"`
	Path      string    `json:"-"`
}

// DetailFile describes one saved article detail.
type DetailFile struct {
	Slug    string    `json:"slug"`
	SavedAt time.Time `json:"saved_at"`
	Path    string    `json:"-"`
}

// New creates the archive root if it doesn't exist.
func New(root string) (*Archive, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{root: root}, nil
}

// Root returns the archive root directory.
func (a *Archive) Root() string {
	return a.root
}

// SaveListing writes a listing snapshot to
// <root>/<source>/original/scrape_<timestamp>.json and returns the path.
func (a *Archive) SaveListing(source string, listing snapshot.Listing) (string, error) {
	if !validName(source) {
		return "", fmt.Errorf("invalid source name %q", source)
	}

	dir := filepath.Join(a.root, source, listingDir)
	name := listingPrefix + listing.ScrapedAt.Format(TimestampLayout) + fileExt
	path := filepath.Join(dir, name)

	if err := writeJSON(dir, path, listing); err != nil {
		return "", fmt.Errorf("failed to save listing: %w", err)
	}
	return path, nil
}

// SaveDetail writes an article detail to
// <root>/<source>/additional/<slug>.json and returns the path. An existing
// file with the same slug is replaced.
func (a *Archive) SaveDetail(source, slug string, detail snapshot.Detail) (string, error) {
	if !validName(source) {
		return "", fmt.Errorf("invalid source name %q", source)
	}
	if !validName(slug) {
		return "", fmt.Errorf("invalid slug %q", slug)
	}

	dir := filepath.Join(a.root, source, detailDir)
	path := filepath.Join(dir, slug+fileExt)

	if err := writeJSON(dir, path, detail); err != nil {
		return "", fmt.Errorf("failed to save detail: %w", err)
	}
	return path, nil
}

// Sources lists source directories in the archive, sorted by name.
func (a *Archive) Sources() ([]string, error) {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	sources := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			sources = append(sources, entry.Name())
		}
	}
	return sources, nil
}

// ListListings returns a source's listing snapshots, oldest first.
func (a *Archive) ListListings(source string) ([]ListingFile, error) {
	entries, err := a.readSourceDir(source, listingDir)
	if err != nil {
		return nil, err
	}

	files := []ListingFile{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, listingPrefix) || filepath.Ext(name) != fileExt {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(name, listingPrefix), fileExt)
		scrapedAt, err := time.ParseInLocation(TimestampLayout, stamp, time.Local)
		if err != nil {
			continue
		}

		files = append(files, ListingFile{
			Name:      strings.TrimSuffix(name, fileExt),
			ScrapedAt: scrapedAt,
			Path:      filepath.Join(a.root, source, listingDir, name),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// GetListing reads the listing snapshot with the given name, with or
// without the .json extension.
func (a *Archive) GetListing(source, name string) (*snapshot.Listing, error) {
	name = strings.TrimSuffix(name, fileExt)
	if !validName(source) || !validName(name) {
		return nil, ErrNotFound
	}

	var listing snapshot.Listing
	path := filepath.Join(a.root, source, listingDir, name+fileExt)
	if err := readJSON(path, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// LatestListing returns the most recent listing snapshot for a source.
func (a *Archive) LatestListing(source string) (*snapshot.Listing, error) {
	files, err := a.ListListings(source)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNotFound
	}
	return a.GetListing(source, files[len(files)-1].Name)
}

// ListDetails returns a source's saved article details sorted by slug.
func (a *Archive) ListDetails(source string) ([]DetailFile, error) {
	entries, err := a.readSourceDir(source, detailDir)
	if err != nil {
		return nil, err
	}

	files := []DetailFile{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != fileExt {
			continue
		}

		var savedAt time.Time
		if info, err := entry.Info(); err == nil {
			savedAt = info.ModTime()
		}

		files = append(files, DetailFile{
			Slug:    strings.TrimSuffix(entry.Name(), fileExt),
			SavedAt: savedAt,
			Path:    filepath.Join(a.root, source, detailDir, entry.Name()),
		})
	}
	return files, nil
}

// GetDetail reads the article detail saved under slug.
func (a *Archive) GetDetail(source, slug string) (*snapshot.Detail, error) {
	if !validName(source) || !validName(slug) {
		return nil, ErrNotFound
	}

	var detail snapshot.Detail
	path := filepath.Join(a.root, source, detailDir, slug+fileExt)
	if err := readJSON(path, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// HasDetail reports whether a detail file exists for slug.
func (a *Archive) HasDetail(source, slug string) bool {
	if !validName(source) || !validName(slug) {
		return false
	}
	_, err := os.Stat(filepath.Join(a.root, source, detailDir, slug+fileExt))
	return err == nil
}

// readSourceDir lists <root>/<source>/<sub>. A missing source is
// ErrNotFound; a source without the subdirectory yet is empty.
func (a *Archive) readSourceDir(source, sub string) ([]os.DirEntry, error) {
	if !validName(source) {
		return nil, ErrNotFound
	}
	if _, err := os.Stat(filepath.Join(a.root, source)); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat source directory: %w", err)
	}

	entries, err := os.ReadDir(filepath.Join(a.root, source, sub))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s directory: %w", sub, err)
	}
	return entries, nil
}

func writeJSON(dir, path string, v any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := snapshot.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}
	return nil
}

// validName rejects anything that would escape its directory.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`)
}
