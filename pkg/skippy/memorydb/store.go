package memorydb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the memory SQLite database. It is safe for concurrent use:
// the underlying connection runs in WAL mode with a busy timeout, and
// every operation here is a single short transaction.
//
// Schema note: channel-scoped memory lives in ONE channel_memories table
// keyed by (channel, key) rather than one table per channel, unlike the
// teacher's own per-skill-table idiom (see skills.go and DESIGN.md).
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the memory database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening memory db: %w", err)
	}
	db.SetMaxOpenConns(1) // go-sqlite3 is not safe for concurrent writers across conns; WAL + busy_timeout handles the rest.

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS global_memories (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			category   TEXT NOT NULL DEFAULT 'general',
			tags       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS channel_memories (
			channel    TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			category   TEXT NOT NULL DEFAULT 'general',
			tags       TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(channel, key)
		)`,
		`CREATE TABLE IF NOT EXISTS skills (
			name              TEXT PRIMARY KEY,
			description       TEXT NOT NULL DEFAULT '',
			instructions      TEXT NOT NULL DEFAULT '',
			owner             TEXT NOT NULL DEFAULT 'global',
			skill_data        TEXT NOT NULL DEFAULT '{}',
			training_progress TEXT NOT NULL DEFAULT '{}',
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_channel_memories_channel ON channel_memories(channel)`,
		`CREATE INDEX IF NOT EXISTS idx_global_memories_category ON global_memories(category)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("memorydb: init schema: %w", err)
		}
	}
	return nil
}

var channelSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// SanitizeChannel converts an arbitrary channel identifier into an
// alphanumeric+underscore form safe for storage keys. The transform is
// irreversible: two distinct raw names may collide after sanitization,
// which is an accepted tradeoff.
func SanitizeChannel(channel string) string {
	return channelSanitizer.ReplaceAllString(channel, "_")
}

func marshalTags(tags []string) string {
	return strings.Join(tags, ",")
}

func unmarshalTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// --- global scope ---

// SetGlobal upserts a global memory record: key is unique per scope,
// and writes upsert rather than error on collision.
func (s *Store) SetGlobal(key string, value json.RawMessage, category string, tags []string) error {
	if category == "" {
		category = "general"
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		INSERT INTO global_memories(key, value, category, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, category=excluded.category,
			tags=excluded.tags, updated_at=excluded.updated_at
	`, key, string(value), category, marshalTags(tags), now, now)
	return err
}

func (s *Store) GetGlobal(key string) (*MemoryRecord, error) {
	row := s.db.QueryRow(`SELECT key, value, category, tags, created_at, updated_at FROM global_memories WHERE key = ?`, key)
	return scanMemoryRow(row, GlobalScope)
}

func (s *Store) DeleteGlobal(key string) error {
	res, err := s.db.Exec(`DELETE FROM global_memories WHERE key = ?`, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListGlobal(category string) ([]MemoryRecord, error) {
	var rows *sql.Rows
	var err error
	if category != "" {
		rows, err = s.db.Query(`SELECT key, value, category, tags, created_at, updated_at FROM global_memories WHERE category = ? ORDER BY key`, category)
	} else {
		rows, err = s.db.Query(`SELECT key, value, category, tags, created_at, updated_at FROM global_memories ORDER BY category, key`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemoryRows(rows, GlobalScope)
}

// --- channel scope ---

func (s *Store) SetChannel(channel, key string, value json.RawMessage, category string, tags []string) error {
	channel = SanitizeChannel(channel)
	if category == "" {
		category = "general"
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Exec(`
		INSERT INTO channel_memories(channel, key, value, category, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel, key) DO UPDATE SET value=excluded.value, category=excluded.category,
			tags=excluded.tags, updated_at=excluded.updated_at
	`, channel, key, string(value), category, marshalTags(tags), now, now)
	return err
}

func (s *Store) GetChannel(channel, key string) (*MemoryRecord, error) {
	channel = SanitizeChannel(channel)
	row := s.db.QueryRow(`SELECT key, value, category, tags, created_at, updated_at FROM channel_memories WHERE channel = ? AND key = ?`, channel, key)
	return scanMemoryRow(row, "channel:"+channel)
}

func (s *Store) DeleteChannelKey(channel, key string) error {
	channel = SanitizeChannel(channel)
	res, err := s.db.Exec(`DELETE FROM channel_memories WHERE channel = ? AND key = ?`, channel, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeChannel drops every memory row for channel. Per
// lifecycle note, this is the only way channel memory is bulk-removed.
func (s *Store) PurgeChannel(channel string) error {
	channel = SanitizeChannel(channel)
	_, err := s.db.Exec(`DELETE FROM channel_memories WHERE channel = ?`, channel)
	return err
}

func (s *Store) ListChannel(channel string) ([]MemoryRecord, error) {
	channel = SanitizeChannel(channel)
	rows, err := s.db.Query(`SELECT key, value, category, tags, created_at, updated_at FROM channel_memories WHERE channel = ? ORDER BY category, key`, channel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemoryRows(rows, "channel:"+channel)
}

func (s *Store) ListKnownChannels() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT channel FROM channel_memories ORDER BY channel`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanMemoryRow(row *sql.Row, scope string) (*MemoryRecord, error) {
	var rec MemoryRecord
	var value, tags, created, updated string
	if err := row.Scan(&rec.Key, &value, &rec.Category, &tags, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.Scope = scope
	rec.Value = json.RawMessage(value)
	rec.Tags = unmarshalTags(tags)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &rec, nil
}

func scanMemoryRows(rows *sql.Rows, scope string) ([]MemoryRecord, error) {
	var out []MemoryRecord
	for rows.Next() {
		var rec MemoryRecord
		var value, tags, created, updated string
		if err := rows.Scan(&rec.Key, &value, &rec.Category, &tags, &created, &updated); err != nil {
			return nil, err
		}
		rec.Scope = scope
		rec.Value = json.RawMessage(value)
		rec.Tags = unmarshalTags(tags)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- tokenized search ---

// tokenize lowercases q, replaces underscores with spaces, and splits on
// whitespace, exactly as specified.
func tokenize(q string) []string {
	q = strings.ToLower(q)
	q = strings.ReplaceAll(q, "_", " ")
	fields := strings.Fields(q)
	return fields
}

// Search performs a cross-scope tokenized search:
// "LOWER(REPLACE(col,'_',' ')) LIKE %token%" per token, ORed together,
// over the key and value columns. An empty query is a QueryEmpty error.
func (s *Store) Search(query string, includeChannel string) ([]MemoryRecord, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, ErrQueryEmpty
	}

	var whereParts []string
	var args []any
	for _, tok := range tokens {
		like := "%" + tok + "%"
		whereParts = append(whereParts, `(LOWER(REPLACE(key,'_',' ')) LIKE ? OR LOWER(REPLACE(value,'_',' ')) LIKE ?)`)
		args = append(args, like, like)
	}
	where := strings.Join(whereParts, " OR ")

	var results []MemoryRecord

	globalSQL := fmt.Sprintf(`SELECT key, value, category, tags, created_at, updated_at FROM global_memories WHERE %s ORDER BY key`, where)
	rows, err := s.db.Query(globalSQL, args...)
	if err != nil {
		return nil, err
	}
	globalRows, err := scanMemoryRows(rows, GlobalScope)
	rows.Close()
	if err != nil {
		return nil, err
	}
	results = append(results, globalRows...)

	if includeChannel != "" {
		ch := SanitizeChannel(includeChannel)
		chanArgs := append(append([]any{}, args...), ch)
		chanSQL := fmt.Sprintf(`SELECT key, value, category, tags, created_at, updated_at FROM channel_memories WHERE (%s) AND channel = ? ORDER BY key`, where)
		rows, err := s.db.Query(chanSQL, chanArgs...)
		if err != nil {
			return nil, err
		}
		chanRows, err := scanMemoryRows(rows, "channel:"+ch)
		rows.Close()
		if err != nil {
			return nil, err
		}
		results = append(results, chanRows...)
	}

	return results, nil
}

// GetContextMemories returns, for each category in the given order, the
// global memories in that category — the auto-injection helper used by
// the orchestrator's context assembly.
func (s *Store) GetContextMemories(categories []string) (map[string][]ContextMemoryEntry, error) {
	out := make(map[string][]ContextMemoryEntry, len(categories))
	for _, cat := range categories {
		recs, err := s.ListGlobal(cat)
		if err != nil {
			return nil, err
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })
		entries := make([]ContextMemoryEntry, 0, len(recs))
		for _, r := range recs {
			entries = append(entries, ContextMemoryEntry{Key: r.Key, Value: r.Value})
		}
		out[cat] = entries
	}
	return out, nil
}
