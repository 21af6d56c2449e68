package area

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/domain"
)

// Store persists area mappings and the unresolved skip-list in SQLite so
// resolutions survive across runs. The mapping table only ever grows; a
// raw name resolved once is never re-resolved or deleted.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the mapping database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create mapping dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open mapping db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS area_mappings (
		raw_key        TEXT PRIMARY KEY,
		canonical_name TEXT NOT NULL,
		latitude       REAL NOT NULL,
		longitude      REAL NOT NULL,
		resolved_at    TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS unresolved_areas (
		raw_key      TEXT PRIMARY KEY,
		raw_name     TEXT NOT NULL,
		attempts     INTEGER NOT NULL DEFAULT 0,
		last_attempt TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create mapping schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Load returns every persisted mapping keyed by normalized raw name.
func (s *Store) Load() (map[string]domain.CanonicalArea, error) {
	rows, err := s.db.Query(`SELECT raw_key, canonical_name, latitude, longitude FROM area_mappings`)
	if err != nil {
		return nil, fmt.Errorf("load area mappings: %w", err)
	}
	defer rows.Close()

	mappings := make(map[string]domain.CanonicalArea)
	for rows.Next() {
		var key string
		var area domain.CanonicalArea
		if err := rows.Scan(&key, &area.Name, &area.Geo.Lat, &area.Geo.Lon); err != nil {
			return nil, fmt.Errorf("scan area mapping: %w", err)
		}
		mappings[key] = area
	}
	return mappings, rows.Err()
}

// Put records a resolved mapping. An existing mapping for the same key is
// kept untouched: the first resolution wins permanently.
func (s *Store) Put(key string, area domain.CanonicalArea, resolvedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO area_mappings (raw_key, canonical_name, latitude, longitude, resolved_at)
		 VALUES (?, ?, ?, ?, ?)`,
		key, area.Name, area.Geo.Lat, area.Geo.Lon, resolvedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("persist area mapping %q: %w", key, err)
	}
	return nil
}

// MarkUnresolved records a failed resolution attempt in the skip-list.
func (s *Store) MarkUnresolved(key, rawName string, attemptedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO unresolved_areas (raw_key, raw_name, attempts, last_attempt)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT(raw_key) DO UPDATE SET attempts = attempts + 1, last_attempt = excluded.last_attempt`,
		key, rawName, attemptedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("persist unresolved area %q: %w", key, err)
	}
	return nil
}

// Unresolved returns the raw names currently on the persisted skip-list.
func (s *Store) Unresolved() ([]string, error) {
	rows, err := s.db.Query(`SELECT raw_name FROM unresolved_areas ORDER BY raw_name`)
	if err != nil {
		return nil, fmt.Errorf("load unresolved areas: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan unresolved area: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
