package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	subcommand, rest := args[0], args[1:]

	switch subcommand {
	case "run", "harvest":
		return handleRun(rest, stdout, stderr)
	case "sources":
		return handleSources(rest, stdout, stderr)
	case "listings":
		return handleListings(rest, stdout, stderr)
	case "show":
		return handleShow(rest, stdout, stderr)
	case "articles":
		return handleArticles(rest, stdout, stderr)
	case "runs":
		return handleRuns(rest, stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Error: unknown command: %s\n\n", subcommand)
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "newsharvest - News listing harvester")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  newsharvest <command> [flags] [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run                 Harvest every enabled source once")
	fmt.Fprintln(w, "  sources             List configured sources")
	fmt.Fprintln(w, "  listings <source>   List saved listing snapshots")
	fmt.Fprintln(w, "  show <source> [name]  Print the articles of a snapshot (default: latest)")
	fmt.Fprintln(w, "  articles <source>   List saved article details")
	fmt.Fprintln(w, "  runs [run-id]       Show harvest history")
	fmt.Fprintln(w, "  help                Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Common flags:")
	fmt.Fprintln(w, "  --config <file>     Settings file (NEWSHARVEST_CONFIG, default ~/.newsharvest/config.yaml)")
	fmt.Fprintln(w, "  --env <file>        Dotenv file (default .env)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  NEWSHARVEST_SOURCES_FILE  Sources file (default: sources.json)")
	fmt.Fprintln(w, "  NEWSHARVEST_OUTPUT_DIR    Archive directory (default: data)")
	fmt.Fprintln(w, "  NEWSHARVEST_HISTORY_DSN   SQLite run history (default: disabled)")
	fmt.Fprintln(w, "  NEWSHARVEST_SEEN_DSN      Seen-URL index (default: disabled)")
	fmt.Fprintln(w, "  NEWSHARVEST_NOTIFY_FILE   Notification publishers (default: none)")
	fmt.Fprintln(w, "  NEWSHARVEST_LOG_LEVEL     debug, info, warn or error (default: info)")
}
