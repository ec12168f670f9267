package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Lookup enumerates schema objects behind a connection. Implementations are
// the only path from the engine to a database backend.
type Lookup interface {
	ListDatabases(ctx context.Context, connID string) ([]string, error)
	ListMeasurements(ctx context.Context, connID, database string) ([]string, error)
	ListFieldKeys(ctx context.Context, connID, database, measurement string) ([]Field, error)
	ListTagKeys(ctx context.Context, connID, database, measurement string) ([]Tag, error)
}

// Dialect selects the metadata statements issued by SQLLookup.
type Dialect string

const (
	// DialectInfluxQL issues SHOW statements.
	DialectInfluxQL Dialect = "influxql"
	// DialectInformationSchema queries information_schema views (Trino and friends).
	DialectInformationSchema Dialect = "information_schema"
)

// ParseDialect maps a configuration value to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case DialectInfluxQL, "":
		return DialectInfluxQL, nil
	case DialectInformationSchema, "trino":
		return DialectInformationSchema, nil
	default:
		return "", fmt.Errorf("unknown schema dialect: %s", s)
	}
}

// SQLLookup implements Lookup over database/sql connections.
type SQLLookup struct {
	dialect Dialect
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.RWMutex
	conns map[string]*sql.DB
}

// NewSQLLookup creates a lookup issuing statements for the given dialect
func NewSQLLookup(dialect Dialect, logger *zap.Logger) *SQLLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLLookup{
		dialect: dialect,
		timeout: 10 * time.Second,
		logger:  logger.With(zap.String("component", "schema_lookup")),
		conns:   make(map[string]*sql.DB),
	}
}

// SetTimeout bounds each metadata statement.
func (l *SQLLookup) SetTimeout(timeout time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timeout = timeout
}

func (l *SQLLookup) statementTimeout() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.timeout
}

// Register binds a connection ID to an open database handle.
func (l *SQLLookup) Register(connID string, db *sql.DB) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conns[connID] = db
}

// Close closes every registered handle.
func (l *SQLLookup) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for id, db := range l.conns {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close connection %s: %w", id, err)
		}
		delete(l.conns, id)
	}
	return firstErr
}

func (l *SQLLookup) conn(connID string) (*sql.DB, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	db, ok := l.conns[connID]
	if !ok {
		return nil, fmt.Errorf("unknown connection: %s", connID)
	}
	return db, nil
}

var identEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteIdent quotes an identifier for embedding in a SHOW statement.
func quoteIdent(name string) string {
	return `"` + identEscaper.Replace(name) + `"`
}

// ListDatabases lists the databases visible to a connection
func (l *SQLLookup) ListDatabases(ctx context.Context, connID string) ([]string, error) {
	query := "SHOW DATABASES"
	if l.dialect == DialectInformationSchema {
		query = "SELECT schema_name FROM information_schema.schemata"
	}
	return l.queryNames(ctx, connID, query)
}

// ListMeasurements lists the measurements (tables) of a database
func (l *SQLLookup) ListMeasurements(ctx context.Context, connID, database string) ([]string, error) {
	if l.dialect == DialectInformationSchema {
		return l.queryNames(ctx, connID,
			"SELECT table_name FROM information_schema.tables WHERE table_schema = ?", database)
	}
	return l.queryNames(ctx, connID, "SHOW MEASUREMENTS ON "+quoteIdent(database))
}

// ListFieldKeys lists field keys and types of a measurement
func (l *SQLLookup) ListFieldKeys(ctx context.Context, connID, database, measurement string) ([]Field, error) {
	var (
		query string
		args  []any
	)
	if l.dialect == DialectInformationSchema {
		query = `SELECT column_name, data_type FROM information_schema.columns WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position`
		args = []any{database, measurement}
	} else {
		query = "SHOW FIELD KEYS ON " + quoteIdent(database) + " FROM " + quoteIdent(measurement)
	}

	db, err := l.conn(connID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, l.statementTimeout())
	defer cancel()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list field keys of %s: %w", measurement, err)
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var f Field
		if err := rows.Scan(&f.Name, &f.Type); err != nil {
			return nil, fmt.Errorf("failed to scan field key: %w", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fields, nil
}

// ListTagKeys lists the tag keys of a measurement. The information_schema
// dialect has no notion of tags and returns none.
func (l *SQLLookup) ListTagKeys(ctx context.Context, connID, database, measurement string) ([]Tag, error) {
	if l.dialect == DialectInformationSchema {
		return nil, nil
	}
	names, err := l.queryNames(ctx, connID,
		"SHOW TAG KEYS ON "+quoteIdent(database)+" FROM "+quoteIdent(measurement))
	if err != nil {
		return nil, err
	}
	tags := make([]Tag, len(names))
	for i, name := range names {
		tags[i] = Tag{Name: name}
	}
	return tags, nil
}

// queryNames runs a single-column query and collects the values.
func (l *SQLLookup) queryNames(ctx context.Context, connID, query string, args ...any) ([]string, error) {
	db, err := l.conn(connID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, l.statementTimeout())
	defer cancel()

	l.logger.Debug("Running metadata query", zap.String("connection", connID), zap.String("query", query))
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metadata query failed: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
