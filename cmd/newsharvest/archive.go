package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/pevans/newsharvest/archive"
	"github.com/pevans/newsharvest/config"
	"github.com/pevans/newsharvest/snapshot"
)

func handleSources(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("sources", stderr)
	sf := addSettingsFlags(fs)
	sourcesFile := fs.String("sources", "", "Sources file (overrides sources_file)")
	format := fs.String("format", formatTable, "Output format: table or json")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if !validFormat(*format) {
		return fail(stderr, "--format must be 'table' or 'json'")
	}

	settings, err := sf.load()
	if err != nil {
		return fail(stderr, "failed to load settings: %v", err)
	}
	if *sourcesFile != "" {
		settings.SourcesFile = *sourcesFile
	}

	sources, err := config.LoadSources(settings.SourcesFile)
	if err != nil {
		return fail(stderr, "%v", err)
	}

	if *format == formatJSON {
		if err := printJSON(stdout, map[string]any{"sources": sources, "total": len(sources)}); err != nil {
			return fail(stderr, "%v", err)
		}
		return 0
	}

	rows := make([][]string, 0, len(sources))
	for _, src := range sources {
		typ := src.Type
		if typ == "" {
			typ = config.SourceTypeHTML
		}
		enabled := "yes"
		if !src.IsEnabled() {
			enabled = "no"
		}
		rows = append(rows, []string{src.Name, typ, enabled, src.URL})
	}
	printTable(stdout, []string{"NAME", "TYPE", "ENABLED", "URL"}, rows, []int{30, 0, 0, 0})
	return 0
}

// archiveCommand is the parsed form of listings, show and articles.
type archiveCommand struct {
	arc    *archive.Archive
	source string
	// item is the optional second argument: a listing name or a slug.
	item   string
	format string
}

// openArchive loads settings for commands that read the archive and takes
// the source name from the first positional argument.
func openArchive(name string, args []string, stderr io.Writer) (*archiveCommand, int) {
	fs := newFlagSet(name, stderr)
	sf := addSettingsFlags(fs)
	outputDir := fs.String("output", "", "Archive directory (overrides output_dir)")
	format := fs.String("format", formatTable, "Output format: table or json")
	if code, ok := parseFlags(fs, args); !ok {
		return nil, code
	}
	if !validFormat(*format) {
		return nil, fail(stderr, "--format must be 'table' or 'json'")
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(stderr, "Error: source name is required\n")
		fmt.Fprintf(stderr, "Usage: newsharvest %s [flags] <source>\n", name)
		return nil, 1
	}

	settings, err := sf.load()
	if err != nil {
		return nil, fail(stderr, "failed to load settings: %v", err)
	}
	if *outputDir != "" {
		settings.OutputDir = *outputDir
	}

	arc, err := archive.New(settings.OutputDir)
	if err != nil {
		return nil, fail(stderr, "%v", err)
	}

	return &archiveCommand{
		arc:    arc,
		source: fs.Arg(0),
		item:   fs.Arg(1),
		format: *format,
	}, 0
}

func archiveFailure(stderr io.Writer, err error, what string) int {
	if errors.Is(err, archive.ErrNotFound) {
		return fail(stderr, "%s not found", what)
	}
	return fail(stderr, "%v", err)
}

func handleListings(args []string, stdout, stderr io.Writer) int {
	cmd, code := openArchive("listings", args, stderr)
	if cmd == nil {
		return code
	}
	arc, source, format := cmd.arc, cmd.source, cmd.format

	files, err := arc.ListListings(source)
	if err != nil {
		return archiveFailure(stderr, err, "source "+source)
	}

	if format == formatJSON {
		if err := printJSON(stdout, map[string]any{"source": source, "listings": files, "total": len(files)}); err != nil {
			return fail(stderr, "%v", err)
		}
		return 0
	}

	if len(files) == 0 {
		fmt.Fprintln(stdout, "No listings saved.")
		return 0
	}

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		count := "?"
		if listing, err := arc.GetListing(source, f.Name); err == nil {
			count = fmt.Sprintf("%d", len(listing.Articles))
		}
		rows = append(rows, []string{f.Name, f.ScrapedAt.Format("2006-01-02 15:04:05"), count})
	}
	printTable(stdout, []string{"NAME", "SCRAPED", "ARTICLES"}, rows, nil)
	return 0
}

func handleShow(args []string, stdout, stderr io.Writer) int {
	cmd, code := openArchive("show", args, stderr)
	if cmd == nil {
		return code
	}
	arc, source, name, format := cmd.arc, cmd.source, cmd.item, cmd.format

	var (
		listing *snapshot.Listing
		err     error
	)
	if name == "" || name == "latest" {
		listing, err = arc.LatestListing(source)
	} else {
		listing, err = arc.GetListing(source, name)
	}
	if err != nil {
		return archiveFailure(stderr, err, "listing")
	}

	if format == formatJSON {
		if err := printJSON(stdout, listing); err != nil {
			return fail(stderr, "%v", err)
		}
		return 0
	}

	printArticles(stdout, listing)
	return 0
}

func handleArticles(args []string, stdout, stderr io.Writer) int {
	cmd, code := openArchive("articles", args, stderr)
	if cmd == nil {
		return code
	}
	arc, source, slug, format := cmd.arc, cmd.source, cmd.item, cmd.format

	if slug != "" {
		detail, err := arc.GetDetail(source, slug)
		if err != nil {
			return archiveFailure(stderr, err, "article "+slug)
		}
		if format == formatJSON {
			if err := printJSON(stdout, detail); err != nil {
				return fail(stderr, "%v", err)
			}
			return 0
		}
		fmt.Fprintf(stdout, "%s\n", detail.Title)
		fmt.Fprintf(stdout, "%s | Scraped: %s\n\n", detail.SourceURL, detail.ScrapedAt.Format("2006-01-02 15:04"))
		fmt.Fprintln(stdout, detail.Content)
		return 0
	}

	files, err := arc.ListDetails(source)
	if err != nil {
		return archiveFailure(stderr, err, "source "+source)
	}

	if format == formatJSON {
		if err := printJSON(stdout, map[string]any{"source": source, "articles": files, "total": len(files)}); err != nil {
			return fail(stderr, "%v", err)
		}
		return 0
	}

	if len(files) == 0 {
		fmt.Fprintln(stdout, "No articles saved.")
		return 0
	}

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.Slug, f.SavedAt.Format("2006-01-02 15:04:05")})
	}
	printTable(stdout, []string{"SLUG", "SAVED"}, rows, []int{70, 0})
	return 0
}
