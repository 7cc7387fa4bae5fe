package cronscheduler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store persists jobs to cron.db, grounded on the same WAL + busy-timeout
// discipline as memorydb.Store.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening cron db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS cron_jobs (
			id          TEXT PRIMARY KEY,
			type        TEXT NOT NULL,
			action      TEXT NOT NULL,
			schedule    TEXT,
			time        TEXT,
			interval_ms INTEGER,
			disabled    INTEGER NOT NULL DEFAULT 0,
			last_fired  TEXT,
			created_at  TEXT NOT NULL
		)
	`)
	return err
}

// Add inserts a new job, assigning an ID if one was not set.
func (s *Store) Add(j *Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	actionJSON, err := json.Marshal(j.Action)
	if err != nil {
		return err
	}
	var scheduleJSON, timeStr, lastFiredStr sql.NullString
	if j.Schedule != nil {
		b, _ := json.Marshal(j.Schedule)
		scheduleJSON = sql.NullString{String: string(b), Valid: true}
	}
	if j.Time != nil {
		timeStr = sql.NullString{String: j.Time.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	if j.LastFired != nil {
		lastFiredStr = sql.NullString{String: j.LastFired.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO cron_jobs(id, type, action, schedule, time, interval_ms, disabled, last_fired, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, string(j.Type), string(actionJSON), scheduleJSON, timeStr, j.IntervalMS, boolToInt(j.Disabled), lastFiredStr, j.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *Store) Remove(id string) error {
	res, err := s.db.Exec(`DELETE FROM cron_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cronscheduler: job %q not found", id)
	}
	return nil
}

func (s *Store) Get(id string) (*Job, error) {
	row := s.db.QueryRow(`SELECT id, type, action, schedule, time, interval_ms, disabled, last_fired, created_at FROM cron_jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListActive returns every non-disabled job — what the per-minute tick
// evaluates.
func (s *Store) ListActive() ([]*Job, error) {
	rows, err := s.db.Query(`SELECT id, type, action, schedule, time, interval_ms, disabled, last_fired, created_at FROM cron_jobs WHERE disabled = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *Store) List() ([]*Job, error) {
	rows, err := s.db.Query(`SELECT id, type, action, schedule, time, interval_ms, disabled, last_fired, created_at FROM cron_jobs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Job
	for rows.Next() {
		j, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// MarkFired updates last_fired (interval/schedule jobs) or deletes the
// job (one_time) so it never fires twice.
func (s *Store) MarkFired(j *Job) error {
	if j.Type == JobOneTime {
		return s.Remove(j.ID)
	}
	now := time.Now().UTC()
	j.LastFired = &now
	_, err := s.db.Exec(`UPDATE cron_jobs SET last_fired = ? WHERE id = ?`, now.Format(time.RFC3339Nano), j.ID)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row *sql.Row) (*Job, error) {
	return scanAny(row)
}

func scanJobRows(rows *sql.Rows) (*Job, error) {
	return scanAny(rows)
}

func scanAny(row rowScanner) (*Job, error) {
	var j Job
	var typ, action string
	var schedule, timeStr, lastFired sql.NullString
	var disabled int
	var created string

	if err := row.Scan(&j.ID, &typ, &action, &schedule, &timeStr, &j.IntervalMS, &disabled, &lastFired, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("cronscheduler: job not found")
		}
		return nil, err
	}
	j.Type = JobType(typ)
	j.Disabled = disabled != 0
	if err := json.Unmarshal([]byte(action), &j.Action); err != nil {
		return nil, err
	}
	if schedule.Valid {
		var ws WeeklySchedule
		if err := json.Unmarshal([]byte(schedule.String), &ws); err != nil {
			return nil, err
		}
		j.Schedule = &ws
	}
	if timeStr.Valid {
		t, err := time.Parse(time.RFC3339Nano, timeStr.String)
		if err != nil {
			return nil, err
		}
		j.Time = &t
	}
	if lastFired.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastFired.String)
		if err != nil {
			return nil, err
		}
		j.LastFired = &t
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, err
	}
	j.CreatedAt = createdAt
	return &j, nil
}
