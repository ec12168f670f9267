package schema

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store persists cache snapshots in a local SQLite database so that a new
// process can start with a warm cache.
type Store struct {
	db     *sql.DB
	lock   sync.Mutex
	logger *zap.Logger
}

// OpenStore opens (creating if needed) the snapshot database in cacheDir
func OpenStore(cacheDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(cacheDir, "schema_cache.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := initStoreDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "schema_store"), zap.String("path", dbPath)),
	}, nil
}

// initStoreDB creates the snapshot tables
func initStoreDB(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS databases (
			name TEXT PRIMARY KEY,
			last_update TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS measurements (
			name TEXT,
			database_name TEXT,
			position INTEGER,
			PRIMARY KEY (name, database_name)
		);

		CREATE TABLE IF NOT EXISTS keys (
			name TEXT,
			kind TEXT,
			data_type TEXT,
			measurement_name TEXT,
			database_name TEXT,
			position INTEGER,
			PRIMARY KEY (name, kind, measurement_name, database_name)
		);
	`)
	return err
}

// Save writes the measurements and keys of one database, replacing any
// previous snapshot of it.
func (s *Store) Save(database string, measurements []string, schemas map[string]MeasurementSchema) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmts := []string{
		"DELETE FROM keys WHERE database_name = ?",
		"DELETE FROM measurements WHERE database_name = ?",
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt, database); err != nil {
			tx.Rollback()
			return err
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO databases (name, last_update) VALUES (?, ?)",
		database, time.Now(),
	); err != nil {
		tx.Rollback()
		return err
	}

	for i, name := range measurements {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO measurements (name, database_name, position) VALUES (?, ?, ?)",
			name, database, i,
		); err != nil {
			tx.Rollback()
			return err
		}

		ms, ok := schemas[name]
		if !ok {
			continue
		}
		for j, f := range ms.Fields {
			if _, err := tx.Exec(
				"INSERT OR REPLACE INTO keys (name, kind, data_type, measurement_name, database_name, position) VALUES (?, 'field', ?, ?, ?, ?)",
				f.Name, f.Type, name, database, j,
			); err != nil {
				tx.Rollback()
				return err
			}
		}
		for j, t := range ms.Tags {
			if _, err := tx.Exec(
				"INSERT OR REPLACE INTO keys (name, kind, data_type, measurement_name, database_name, position) VALUES (?, 'tag', '', ?, ?, ?)",
				t.Name, name, database, j,
			); err != nil {
				tx.Rollback()
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("Stored schema snapshot", zap.String("database", database), zap.Int("measurements", len(measurements)))
	return nil
}

// LoadInto populates cache with every stored database.
func (s *Store) LoadInto(cache *Cache) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	rows, err := s.db.Query("SELECT database_name, name FROM measurements ORDER BY database_name, position")
	if err != nil {
		return err
	}
	defer rows.Close()

	measurements := make(map[string][]string)
	var order []string
	for rows.Next() {
		var db, name string
		if err := rows.Scan(&db, &name); err != nil {
			return err
		}
		if _, ok := measurements[db]; !ok {
			order = append(order, db)
		}
		measurements[db] = append(measurements[db], name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	keyRows, err := s.db.Query(
		"SELECT database_name, measurement_name, kind, name, data_type FROM keys ORDER BY database_name, measurement_name, kind, position")
	if err != nil {
		return err
	}
	defer keyRows.Close()

	schemas := make(map[string]map[string]MeasurementSchema)
	for keyRows.Next() {
		var db, measurement, kind, name, dataType string
		if err := keyRows.Scan(&db, &measurement, &kind, &name, &dataType); err != nil {
			return err
		}
		if schemas[db] == nil {
			schemas[db] = make(map[string]MeasurementSchema)
		}
		ms := schemas[db][measurement]
		if kind == "tag" {
			ms.Tags = append(ms.Tags, Tag{Name: name})
		} else {
			ms.Fields = append(ms.Fields, Field{Name: name, Type: dataType})
		}
		schemas[db][measurement] = ms
	}
	if err := keyRows.Err(); err != nil {
		return err
	}

	for _, db := range order {
		cache.Put(db, measurements[db], schemas[db])
	}
	s.logger.Debug("Loaded schema snapshot", zap.Int("databases", len(order)))
	return nil
}

// Clear removes every stored snapshot.
func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, err := s.db.Exec("DELETE FROM keys; DELETE FROM measurements; DELETE FROM databases;")
	return err
}

// Close closes the snapshot database.
func (s *Store) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.db.Close()
}
