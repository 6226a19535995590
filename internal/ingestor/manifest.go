package ingestor

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fieldsync/fieldsync/internal/clock"
)

// Manifest is a durable catalog of every admitted DeviceSession, backed
// by modernc.org/sqlite (SPEC_FULL.md Supplemented Features: the
// distilled spec keeps no session history at all, in-memory or
// otherwise; this survives an ingestor restart).
type Manifest struct {
	db *sql.DB
}

// OpenManifest opens (creating if absent) the SQLite file at path and
// ensures its schema exists.
func OpenManifest(path string) (*Manifest, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ingestor: open manifest db %s: %w", path, err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	ident INTEGER NOT NULL,
	created_ts REAL NOT NULL,
	admitted_at TEXT NOT NULL,
	closed_at TEXT
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ingestor: manifest schema: %w", err)
	}
	return &Manifest{db: db}, nil
}

// RecordAdmission inserts a row for a newly admitted session.
func (m *Manifest) RecordAdmission(s *DeviceSession) error {
	_, err := m.db.Exec(
		`INSERT INTO sessions (id, kind, ident, created_ts, admitted_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID.String(), string(s.Kind), s.Ident, float64(s.CreatedTs), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ingestor: manifest insert: %w", err)
	}
	return nil
}

// RecordClosed marks a session as closed.
func (m *Manifest) RecordClosed(id string) error {
	_, err := m.db.Exec(`UPDATE sessions SET closed_at = ? WHERE id = ?`, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("ingestor: manifest update: %w", err)
	}
	return nil
}

// SessionRecord is one manifest row, returned by ListOpen.
type SessionRecord struct {
	ID         string
	Kind       string
	Ident      uint32
	CreatedTs  clock.Timestamp
	AdmittedAt string
}

// ListOpen returns every session with no recorded close time.
func (m *Manifest) ListOpen() ([]SessionRecord, error) {
	rows, err := m.db.Query(`SELECT id, kind, ident, created_ts, admitted_at FROM sessions WHERE closed_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("ingestor: manifest query: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var r SessionRecord
		var createdTs float64
		if err := rows.Scan(&r.ID, &r.Kind, &r.Ident, &createdTs, &r.AdmittedAt); err != nil {
			return nil, fmt.Errorf("ingestor: manifest scan: %w", err)
		}
		r.CreatedTs = clock.Timestamp(createdTs)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (m *Manifest) Close() error {
	return m.db.Close()
}
