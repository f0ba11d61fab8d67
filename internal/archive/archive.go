// Package archive keeps a local, durable record of compiled schedules in
// SQLite, so an authoring session can answer "what exactly did we compile
// last Tuesday" without re-deriving it.
package archive

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/flowforge/flowforge/internal/schedule"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - pre-versioning
// 1 - initial runs table
const currentSchemaVersion = 1

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("run not found")

// Run is one archived compilation.
type Run struct {
	ID        string
	Name      string
	RigPath   string
	CreatedAt time.Time
	DurationS float64
	Schedule  *schedule.Schedule
}

// Archive is a SQLite-backed run store. Safe for one writer at a time;
// opened with WAL so readers are not blocked.
type Archive struct {
	db *sql.DB
}

// Open creates or opens the archive database at path, applying pragmas and
// schema migrations. Idempotent.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to archive: %w", err)
	}

	// SQLite supports one writer; avoid SQLITE_BUSY by not pooling.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close releases the database.
func (a *Archive) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Save archives a compiled schedule and returns the new run id.
func (a *Archive) Save(name, rigPath string, s *schedule.Schedule) (string, error) {
	encoded, err := s.EncodeJSON()
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}

	id := uuid.NewString()
	_, err = a.db.Exec(
		`INSERT INTO runs (id, name, rig_path, created_at, duration_s, schedule_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, rigPath, time.Now().UTC().Format(time.RFC3339Nano), s.Duration(), encoded,
	)
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	return id, nil
}

// Get loads one run by id.
func (a *Archive) Get(id string) (*Run, error) {
	row := a.db.QueryRow(
		`SELECT id, name, rig_path, created_at, duration_s, schedule_json
		 FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// List returns run metadata, newest first. The schedules themselves are
// not decoded; fetch a specific run with Get.
func (a *Archive) List() ([]Run, error) {
	rows, err := a.db.Query(
		`SELECT id, name, rig_path, created_at, duration_s
		 FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var created string
		if err := rows.Scan(&r.ID, &r.Name, &r.RigPath, &created, &r.DurationS); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("list runs: bad created_at %q: %w", created, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Latest returns the newest run for a protocol name.
func (a *Archive) Latest(name string) (*Run, error) {
	row := a.db.QueryRow(
		`SELECT id, name, rig_path, created_at, duration_s, schedule_json
		 FROM runs WHERE name = ? ORDER BY created_at DESC, id LIMIT 1`, name)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run for %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest run for %s: %w", name, err)
	}
	return run, nil
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	var created string
	var encoded []byte
	if err := row.Scan(&r.ID, &r.Name, &r.RigPath, &created, &r.DurationS, &encoded); err != nil {
		return nil, err
	}

	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", created, err)
	}
	if r.Schedule, err = schedule.Decode(encoded); err != nil {
		return nil, err
	}
	return &r, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}
