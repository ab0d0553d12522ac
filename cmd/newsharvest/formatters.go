package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/pevans/newsharvest/snapshot"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// printTable writes rows under headers with columns padded to their display
// width. limits caps each column (zero means no cap); wide titles are cut
// with an ellipsis.
func printTable(w io.Writer, headers []string, rows [][]string, limits []int) {
	widths := make([]int, len(headers))
	cells := make([][]string, 0, len(rows)+1)

	for _, row := range append([][]string{headers}, rows...) {
		line := make([]string, len(headers))
		for i := range headers {
			if i >= len(row) {
				continue
			}
			cell := row[i]
			if i < len(limits) && limits[i] > 0 {
				cell = runewidth.Truncate(cell, limits[i], "...")
			}
			line[i] = cell
			if width := runewidth.StringWidth(cell); width > widths[i] {
				widths[i] = width
			}
		}
		cells = append(cells, line)
	}

	for r, line := range cells {
		var sb strings.Builder
		for i, cell := range line {
			if i == len(line)-1 {
				sb.WriteString(cell)
				break
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
			sb.WriteString("  ")
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))

		if r == 0 {
			total := 0
			for _, width := range widths {
				total += width + 2
			}
			fmt.Fprintln(w, strings.Repeat("-", total-2))
		}
	}
}

// printJSON writes v the way archive files are written.
func printJSON(w io.Writer, v any) error {
	data, err := snapshot.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func validFormat(format string) bool {
	return format == formatTable || format == formatJSON
}

// printArticles prints a listing snapshot's entries.
func printArticles(w io.Writer, listing *snapshot.Listing) {
	fmt.Fprintf(w, "Source: %s\n", listing.SourceURL)
	fmt.Fprintf(w, "Scraped: %s\n\n", listing.ScrapedAt.Format("2006-01-02 15:04:05"))

	if len(listing.Articles) == 0 {
		fmt.Fprintln(w, "No articles in this snapshot.")
		return
	}

	rows := make([][]string, 0, len(listing.Articles))
	for i, a := range listing.Articles {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), a.Title, a.URL})
	}
	printTable(w, []string{"#", "TITLE", "URL"}, rows, []int{0, 60, 0})
}

// summarizeError is used for ledger error text in tables.
func summarizeError(msg *string) string {
	if msg == nil {
		return ""
	}
	return runewidth.Truncate(*msg, 60, "...")
}
