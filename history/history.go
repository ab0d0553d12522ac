package history

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// Fetch kinds
const (
	KindListing = "listing"
	KindDetail  = "detail"
)

// Fetch outcomes
const (
	StatusSaved   = "saved"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Store records harvest runs and every listing or detail attempt made
// during them, using SQLite.
type Store struct {
	db *sql.DB
}

// RunStats are the counters kept for a finished run.
type RunStats struct {
	SourcesSynced  int `json:"sources_synced"`
	SourcesFailed  int `json:"sources_failed"`
	ListingsSaved  int `json:"listings_saved"`
	DetailsSaved   int `json:"details_saved"`
	DetailsFailed  int `json:"details_failed"`
	DetailsSkipped int `json:"details_skipped"`
}

// Run is one invocation of the harvester over all sources.
type Run struct {
	RunID      uuid.UUID  `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	RunStats
}

// Fetch is one listing or detail attempt.
type Fetch struct {
	ID        int64     `json:"id"`
	RunID     uuid.UUID `json:"run_id"`
	Source    string    `json:"source"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Path      *string   `json:"path,omitempty"`
	Error     *string   `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// FetchFilter narrows ListFetches.
type FetchFilter struct {
	Source *string
	Kind   *string
	Status *string
}

// New opens (or creates) the ledger at dsn.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		sources_synced INTEGER DEFAULT 0,
		sources_failed INTEGER DEFAULT 0,
		listings_saved INTEGER DEFAULT 0,
		details_saved INTEGER DEFAULT 0,
		details_failed INTEGER DEFAULT 0,
		details_skipped INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS fetches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		source TEXT NOT NULL,
		kind TEXT NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		path TEXT,
		error TEXT,
		fetched_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fetches_run ON fetches(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun inserts a new run with a fresh ID.
func (s *Store) StartRun(startedAt time.Time) (*Run, error) {
	run := &Run{
		RunID:     uuid.New(),
		StartedAt: startedAt.Truncate(0),
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, started_at) VALUES (?, ?)`,
		run.RunID.String(),
		formatTime(&run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return run, nil
}

// FinishRun stores the final counters of a run.
func (s *Store) FinishRun(runID uuid.UUID, finishedAt time.Time, stats RunStats) error {
	query := `
		UPDATE runs SET
			finished_at = ?, sources_synced = ?, sources_failed = ?,
			listings_saved = ?, details_saved = ?, details_failed = ?,
			details_skipped = ?
		WHERE run_id = ?
	`

	result, err := s.db.Exec(query,
		formatTime(&finishedAt),
		stats.SourcesSynced,
		stats.SourcesFailed,
		stats.ListingsSaved,
		stats.DetailsSaved,
		stats.DetailsFailed,
		stats.DetailsSkipped,
		runID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRunNotFound
	}

	return nil
}

// RecordFetch appends one attempt to the ledger. A zero FetchedAt is
// recorded as the current time.
func (s *Store) RecordFetch(f Fetch) error {
	if f.FetchedAt.IsZero() {
		f.FetchedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO fetches (run_id, source, kind, url, status, path, error, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		f.RunID.String(),
		f.Source,
		f.Kind,
		f.URL,
		f.Status,
		f.Path,
		f.Error,
		formatTime(&f.FetchedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert fetch: %w", err)
	}
	return nil
}

const runColumns = `
	run_id, started_at, finished_at, sources_synced, sources_failed,
	listings_saved, details_saved, details_failed, details_skipped
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var runIDStr, startedAtStr string
	var finishedAtStr sql.NullString
	var run Run

	err := row.Scan(
		&runIDStr, &startedAtStr, &finishedAtStr,
		&run.SourcesSynced, &run.SourcesFailed, &run.ListingsSaved,
		&run.DetailsSaved, &run.DetailsFailed, &run.DetailsSkipped,
	)
	if err != nil {
		return nil, err
	}

	runID, err := uuid.Parse(runIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid run_id: %w", err)
	}
	run.RunID = runID
	run.StartedAt = parseTime(startedAtStr)
	if finishedAtStr.Valid {
		t := parseTime(finishedAtStr.String)
		run.FinishedAt = &t
	}

	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(runID uuid.UUID) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID.String())

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first. A limit of zero returns every run.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// ListFetches returns a run's attempts in the order they were recorded.
func (s *Store) ListFetches(runID uuid.UUID, filter FetchFilter) ([]Fetch, error) {
	query := `
		SELECT id, run_id, source, kind, url, status, path, error, fetched_at
		FROM fetches
	`

	whereClauses := []string{"run_id = ?"}
	args := []any{runID.String()}

	if filter.Source != nil {
		whereClauses = append(whereClauses, "source = ?")
		args = append(args, *filter.Source)
	}
	if filter.Kind != nil {
		whereClauses = append(whereClauses, "kind = ?")
		args = append(args, *filter.Kind)
	}
	if filter.Status != nil {
		whereClauses = append(whereClauses, "status = ?")
		args = append(args, *filter.Status)
	}

	query += " WHERE " + strings.Join(whereClauses, " AND ") + " ORDER BY id ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetches: %w", err)
	}
	defer rows.Close()

	fetches := []Fetch{}
	for rows.Next() {
		var f Fetch
		var runIDStr, fetchedAtStr string
		var path, errText sql.NullString

		err := rows.Scan(
			&f.ID, &runIDStr, &f.Source, &f.Kind, &f.URL,
			&f.Status, &path, &errText, &fetchedAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fetch: %w", err)
		}

		f.RunID, err = uuid.Parse(runIDStr)
		if err != nil {
			return nil, fmt.Errorf("invalid run_id: %w", err)
		}
		if path.Valid {
			f.Path = &path.String
		}
		if errText.Valid {
			f.Error = &errText.String
		}
		f.FetchedAt = parseTime(fetchedAtStr)

		fetches = append(fetches, f)
	}

	return fetches, rows.Err()
}

// timeLayout is fixed-width and always UTC so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Helper functions for time formatting
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}
