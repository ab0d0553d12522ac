package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pevans/newsharvest/history"
)

func handleRuns(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("runs", stderr)
	sf := addSettingsFlags(fs)
	limit := fs.Int("limit", 10, "Number of runs to show")
	status := fs.String("status", "", "Only show fetches with this status (saved, failed, skipped)")
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
	if settings.HistoryDSN == "" {
		return fail(stderr, "run history is disabled; set history_dsn (NEWSHARVEST_HISTORY_DSN)")
	}

	ledger, err := history.New(settings.HistoryDSN)
	if err != nil {
		return fail(stderr, "failed to open history: %v", err)
	}
	defer ledger.Close()

	if fs.NArg() > 0 {
		return showRun(ledger, fs.Arg(0), *status, *format, stdout, stderr)
	}

	runs, err := ledger.ListRuns(*limit)
	if err != nil {
		return fail(stderr, "%v", err)
	}

	if *format == formatJSON {
		if err := printJSON(stdout, map[string]any{"runs": runs, "total": len(runs)}); err != nil {
			return fail(stderr, "%v", err)
		}
		return 0
	}

	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs recorded.")
		return 0
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		finished := "running"
		if run.FinishedAt != nil {
			finished = run.FinishedAt.Format("2006-01-02 15:04:05")
		}
		rows = append(rows, []string{
			run.RunID.String(),
			run.StartedAt.Format("2006-01-02 15:04:05"),
			finished,
			fmt.Sprintf("%d/%d", run.SourcesSynced, run.SourcesSynced+run.SourcesFailed),
			fmt.Sprintf("%d/%d/%d", run.DetailsSaved, run.DetailsFailed, run.DetailsSkipped),
		})
	}
	printTable(stdout, []string{"RUN ID", "STARTED", "FINISHED", "SOURCES", "SAVED/FAILED/SKIPPED"}, rows, nil)
	return 0
}

func showRun(ledger *history.Store, rawID, status, format string, stdout, stderr io.Writer) int {
	runID, err := uuid.Parse(rawID)
	if err != nil {
		return fail(stderr, "invalid run ID: %v", err)
	}

	run, err := ledger.GetRun(runID)
	if err != nil {
		if errors.Is(err, history.ErrRunNotFound) {
			return fail(stderr, "run %s not found", rawID)
		}
		return fail(stderr, "%v", err)
	}

	var filter history.FetchFilter
	if status != "" {
		filter.Status = &status
	}
	fetches, err := ledger.ListFetches(runID, filter)
	if err != nil {
		return fail(stderr, "%v", err)
	}

	if format == formatJSON {
		if err := printJSON(stdout, map[string]any{"run": run, "fetches": fetches}); err != nil {
			return fail(stderr, "%v", err)
		}
		return 0
	}

	fmt.Fprintf(stdout, "Run: %s\n", run.RunID)
	fmt.Fprintf(stdout, "  Started: %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Fprintf(stdout, "  Finished: %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(stdout, "  Sources synced: %d, failed: %d\n", run.SourcesSynced, run.SourcesFailed)
	fmt.Fprintf(stdout, "  Articles saved: %d, failed: %d, skipped: %d\n\n", run.DetailsSaved, run.DetailsFailed, run.DetailsSkipped)

	rows := make([][]string, 0, len(fetches))
	for _, f := range fetches {
		rows = append(rows, []string{f.Source, f.Kind, f.Status, f.URL, summarizeError(f.Error)})
	}
	printTable(stdout, []string{"SOURCE", "KIND", "STATUS", "URL", "ERROR"}, rows, []int{20, 0, 0, 70, 0})
	return 0
}
