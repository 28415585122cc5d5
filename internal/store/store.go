// Package store implements the Session Store (C3): a thin layer over an
// embedded SQLite database holding durable session rows and a small scalar
// key/value table for process-wide settings such as the last-seen extension
// version.
//
// Every method here fails with a StoreError on underlying I/O failure.
// Degrading that into a default (nil/false) is the caller's responsibility
// (see SPEC_FULL.md §7) — this package always reports the real error.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"

	"github.com/spacekeeper/spacekeeperd/internal/model"
)

// StoreError wraps an underlying I/O failure from the database.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	session_hash INTEGER NOT NULL,
	tabs TEXT NOT NULL,
	history TEXT NOT NULL,
	last_access INTEGER NOT NULL,
	bounds TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_name ON sessions(name COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is the SQLite-backed Session Store.
type Store struct {
	db        *sql.DB
	byIDCache *lru.Cache[model.SessionID, *model.Session]
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrap("open", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialize writers, avoid SQLITE_BUSY

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, wrap("migrate", err)
	}

	cache, err := lru.New[model.SessionID, *model.Session](256)
	if err != nil {
		db.Close()
		return nil, wrap("cache-init", err)
	}

	return &Store{db: db, byIDCache: cache}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

type sessionRow struct {
	id          int64
	name        sql.NullString
	sessionHash int64
	tabsJSON    string
	historyJSON string
	lastAccess  int64
	boundsJSON  sql.NullString
}

func scanRow(row interface{ Scan(dest ...any) error }) (sessionRow, error) {
	var r sessionRow
	err := row.Scan(&r.id, &r.name, &r.sessionHash, &r.tabsJSON, &r.historyJSON, &r.lastAccess, &r.boundsJSON)
	return r, err
}

func (r sessionRow) toModel() (*model.Session, error) {
	var tabs []model.Tab
	if err := json.Unmarshal([]byte(r.tabsJSON), &tabs); err != nil {
		return nil, fmt.Errorf("decode tabs: %w", err)
	}
	var history []model.Tab
	if err := json.Unmarshal([]byte(r.historyJSON), &history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	var bounds *model.Bounds
	if r.boundsJSON.Valid && r.boundsJSON.String != "" {
		bounds = &model.Bounds{}
		if err := json.Unmarshal([]byte(r.boundsJSON.String), bounds); err != nil {
			return nil, fmt.Errorf("decode bounds: %w", err)
		}
	}
	s := &model.Session{
		ID:          model.SessionID(r.id),
		SessionHash: uint32(r.sessionHash),
		Tabs:        tabs,
		History:     history,
		LastAccess:  time.Unix(0, r.lastAccess),
		Bounds:      bounds,
	}
	if r.name.Valid {
		s.Name = r.name.String
	}
	return s, nil
}

// FetchAll returns every persisted session.
func (s *Store) FetchAll() ([]*model.Session, error) {
	rows, err := s.db.Query(`SELECT id, name, session_hash, tabs, history, last_access, bounds FROM sessions`)
	if err != nil {
		return nil, wrap("fetch-all", err)
	}
	defer rows.Close()

	var out []*model.Session
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, wrap("fetch-all-scan", err)
		}
		sess, err := r.toModel()
		if err != nil {
			return nil, wrap("fetch-all-decode", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("fetch-all-rows", err)
	}
	return out, nil
}

// FetchByID returns the session with the given id, or nil if none exists.
func (s *Store) FetchByID(id model.SessionID) (*model.Session, error) {
	if cached, ok := s.byIDCache.Get(id); ok {
		return cached.Clone(), nil
	}

	row := s.db.QueryRow(`SELECT id, name, session_hash, tabs, history, last_access, bounds FROM sessions WHERE id = ?`, int64(id))
	r, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("fetch-by-id", err)
	}
	sess, err := r.toModel()
	if err != nil {
		return nil, wrap("fetch-by-id-decode", err)
	}
	s.byIDCache.Add(id, sess)
	return sess.Clone(), nil
}

// FetchByWindowID performs a linear scan for a session bound to wid. Window
// bindings are never persisted (SPEC_FULL.md §4.3), so this is only ever
// used by callers that pass a snapshot carrying an in-memory WindowID — in
// practice the registry's in-memory index always wins and this path exists
// for API symmetry with spec.md §4.3's enumeration.
func (s *Store) FetchByWindowID(wid model.WindowID) (*model.Session, error) {
	all, err := s.FetchAll()
	if err != nil {
		return nil, err
	}
	for _, sess := range all {
		if sess.WindowID == wid {
			return sess, nil
		}
	}
	return nil, nil
}

// FetchByName performs a case-insensitive lookup.
func (s *Store) FetchByName(name string) (*model.Session, error) {
	row := s.db.QueryRow(`SELECT id, name, session_hash, tabs, history, last_access, bounds FROM sessions WHERE LOWER(name) = LOWER(?)`, name)
	r, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("fetch-by-name", err)
	}
	sess, err := r.toModel()
	if err != nil {
		return nil, wrap("fetch-by-name-decode", err)
	}
	return sess, nil
}

// Draft is the subset of Session fields a caller supplies to Create; the
// store assigns ID.
type Draft struct {
	Name        string
	SessionHash uint32
	Tabs        []model.Tab
	History     []model.Tab
	LastAccess  time.Time
	Bounds      *model.Bounds
}

// Create inserts a new row and returns it with its assigned id.
func (s *Store) Create(d Draft) (*model.Session, error) {
	tabsJSON, err := json.Marshal(d.Tabs)
	if err != nil {
		return nil, wrap("create-encode-tabs", err)
	}
	history := d.History
	if history == nil {
		history = []model.Tab{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, wrap("create-encode-history", err)
	}
	var boundsJSON sql.NullString
	if d.Bounds != nil {
		b, err := json.Marshal(d.Bounds)
		if err != nil {
			return nil, wrap("create-encode-bounds", err)
		}
		boundsJSON = sql.NullString{String: string(b), Valid: true}
	}
	var name sql.NullString
	if d.Name != "" {
		name = sql.NullString{String: d.Name, Valid: true}
	}

	res, err := s.db.Exec(
		`INSERT INTO sessions (name, session_hash, tabs, history, last_access, bounds) VALUES (?, ?, ?, ?, ?, ?)`,
		name, int64(d.SessionHash), string(tabsJSON), string(historyJSON), d.LastAccess.UnixNano(), boundsJSON,
	)
	if err != nil {
		return nil, wrap("create", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrap("create-last-id", err)
	}

	out := &model.Session{
		ID:          model.SessionID(id),
		Name:        d.Name,
		SessionHash: d.SessionHash,
		Tabs:        d.Tabs,
		History:     history,
		LastAccess:  d.LastAccess,
		Bounds:      d.Bounds,
	}
	s.byIDCache.Add(out.ID, out.Clone())
	return out, nil
}

// Update persists every field of session (which must have a valid ID).
// WindowID is intentionally never written (SPEC_FULL.md §4.3/Open Question 3).
func (s *Store) Update(session *model.Session) (*model.Session, error) {
	if !session.ID.Valid() {
		return nil, wrap("update", fmt.Errorf("session has no id"))
	}
	tabsJSON, err := json.Marshal(session.Tabs)
	if err != nil {
		return nil, wrap("update-encode-tabs", err)
	}
	history := session.History
	if history == nil {
		history = []model.Tab{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, wrap("update-encode-history", err)
	}
	var boundsJSON sql.NullString
	if session.Bounds != nil {
		b, err := json.Marshal(session.Bounds)
		if err != nil {
			return nil, wrap("update-encode-bounds", err)
		}
		boundsJSON = sql.NullString{String: string(b), Valid: true}
	}
	var name sql.NullString
	if session.Name != "" {
		name = sql.NullString{String: session.Name, Valid: true}
	}

	_, err = s.db.Exec(
		`UPDATE sessions SET name = ?, session_hash = ?, tabs = ?, history = ?, last_access = ?, bounds = ? WHERE id = ?`,
		name, int64(session.SessionHash), string(tabsJSON), string(historyJSON), session.LastAccess.UnixNano(), boundsJSON, int64(session.ID),
	)
	if err != nil {
		return nil, wrap("update", err)
	}

	s.byIDCache.Remove(session.ID)
	out := session.Clone()
	out.WindowID = 0 // never part of the persisted view
	s.byIDCache.Add(out.ID, out)
	return out, nil
}

// Remove deletes the row with the given id. It reports whether a row was
// actually removed.
func (s *Store) Remove(id model.SessionID) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, int64(id))
	if err != nil {
		return false, wrap("remove", err)
	}
	s.byIDCache.Remove(id)
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("remove-rows-affected", err)
	}
	return n > 0, nil
}

// GetExtensionVersion reads the process-wide last-seen extension version.
func (s *Store) GetExtensionVersion() (string, error) {
	row := s.db.QueryRow(`SELECT value FROM kv WHERE key = 'extension_version'`)
	var raw string
	if err := row.Scan(&raw); err == sql.ErrNoRows {
		return "", nil
	} else if err != nil {
		return "", wrap("get-extension-version", err)
	}
	var v string
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return "", wrap("get-extension-version-decode", err)
	}
	return v, nil
}

// SetExtensionVersion writes the last-seen extension version.
func (s *Store) SetExtensionVersion(version string) error {
	encoded, err := json.Marshal(version)
	if err != nil {
		return wrap("set-extension-version-encode", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO kv (key, value) VALUES ('extension_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		string(encoded),
	)
	return wrap("set-extension-version", err)
}

// NamesEqual reports whether two session names are equal under the store's
// case-insensitivity rule (invariant 4).
func NamesEqual(a, b string) bool { return strings.EqualFold(a, b) }
