package schema

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrNotCached is returned by reads for a database or measurement that has not been loaded.
var ErrNotCached = errors.New("schema not cached")

// Field is a field key together with its InfluxDB data type.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Tag is a tag key.
type Tag struct {
	Name string `json:"name"`
}

// MeasurementSchema holds the field and tag keys of one measurement.
type MeasurementSchema struct {
	Fields []Field `json:"fields"`
	Tags   []Tag   `json:"tags"`
}

// Cache is the memoized view of databases, measurements, fields and tags.
// Entries are populated on demand and only removed by Clear.
type Cache struct {
	mu           sync.RWMutex
	databases    map[string][]string          // connection ID -> database names
	measurements map[string][]string          // database -> measurement names
	schemas      map[string]MeasurementSchema // "database.measurement" -> keys
	logger       *zap.Logger
}

// NewCache creates an empty schema cache
func NewCache(logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		databases:    make(map[string][]string),
		measurements: make(map[string][]string),
		schemas:      make(map[string]MeasurementSchema),
		logger:       logger.With(zap.String("component", "schema_cache")),
	}
}

func schemaKey(database, measurement string) string {
	return database + "." + measurement
}

// Has reports whether measurements for database are cached.
func (c *Cache) Has(database string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.measurements[database]
	return ok
}

// Measurements returns the cached measurement names of a database.
func (c *Cache) Measurements(database string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names, ok := c.measurements[database]
	if !ok {
		return nil, fmt.Errorf("%w: database %q", ErrNotCached, database)
	}
	return append([]string(nil), names...), nil
}

// Measurement returns the cached field and tag keys of a measurement.
func (c *Cache) Measurement(database, measurement string) (MeasurementSchema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ms, ok := c.schemas[schemaKey(database, measurement)]
	if !ok {
		return MeasurementSchema{}, fmt.Errorf("%w: measurement %q in %q", ErrNotCached, measurement, database)
	}
	return ms, nil
}

// Databases returns the cached database names for a connection.
func (c *Cache) Databases(connID string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names, ok := c.databases[connID]
	if !ok {
		return nil, fmt.Errorf("%w: databases of connection %q", ErrNotCached, connID)
	}
	return append([]string(nil), names...), nil
}

// Put stores measurements and their schemas for a database. Existing entries
// for the same keys are replaced; other entries are untouched.
func (c *Cache) Put(database string, measurements []string, schemas map[string]MeasurementSchema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.measurements[database] = append([]string(nil), measurements...)
	for name, ms := range schemas {
		c.schemas[schemaKey(database, name)] = ms
	}
}

// PutDatabases stores the database list of a connection.
func (c *Cache) PutDatabases(connID string, databases []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.databases[connID] = append([]string(nil), databases...)
}

// Snapshot returns a copy of every cached database with its measurement schemas.
func (c *Cache) Snapshot() map[string]map[string]MeasurementSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]map[string]MeasurementSchema, len(c.measurements))
	for db, names := range c.measurements {
		byName := make(map[string]MeasurementSchema, len(names))
		for _, name := range names {
			byName[name] = c.schemas[schemaKey(db, name)]
		}
		out[db] = byName
	}
	return out
}

// CachedDatabases lists the databases whose measurements are cached.
func (c *Cache) CachedDatabases() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dbs := make([]string, 0, len(c.measurements))
	for db := range c.measurements {
		dbs = append(dbs, db)
	}
	return dbs
}

// Clear empties the cache unconditionally.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.databases = make(map[string][]string)
	c.measurements = make(map[string][]string)
	c.schemas = make(map[string]MeasurementSchema)
	c.logger.Debug("Schema cache cleared")
}

// EnsureLoaded fetches the measurements of database, and the field and tag
// keys of each, when the database is not cached yet. A failed measurement
// listing leaves the database absent. A failed key listing skips only that
// measurement's schema.
func (c *Cache) EnsureLoaded(ctx context.Context, lookup Lookup, connID, database string) error {
	if database == "" || lookup == nil || c.Has(database) {
		return nil
	}
	return c.Load(ctx, lookup, connID, database)
}

// Load fetches database from the lookup regardless of what is cached and
// stores the result. Re-loading the same database is harmless.
func (c *Cache) Load(ctx context.Context, lookup Lookup, connID, database string) error {
	log := c.logger.With(zap.String("connection", connID), zap.String("database", database))

	measurements, err := lookup.ListMeasurements(ctx, connID, database)
	if err != nil {
		log.Warn("Failed to list measurements", zap.Error(err))
		return fmt.Errorf("failed to list measurements of %q: %w", database, err)
	}

	schemas := make(map[string]MeasurementSchema, len(measurements))
	for _, name := range measurements {
		if err := ctx.Err(); err != nil {
			return err
		}

		fields, err := lookup.ListFieldKeys(ctx, connID, database, name)
		if err != nil {
			log.Warn("Failed to list field keys", zap.String("measurement", name), zap.Error(err))
			continue
		}
		tags, err := lookup.ListTagKeys(ctx, connID, database, name)
		if err != nil {
			log.Warn("Failed to list tag keys", zap.String("measurement", name), zap.Error(err))
			continue
		}
		schemas[name] = MeasurementSchema{Fields: fields, Tags: tags}
	}

	c.Put(database, measurements, schemas)
	log.Debug("Loaded schema",
		zap.Int("measurements", len(measurements)),
		zap.Int("schemas", len(schemas)))
	return nil
}

// EnsureDatabases fetches the database list of a connection when it is not cached.
func (c *Cache) EnsureDatabases(ctx context.Context, lookup Lookup, connID string) error {
	if lookup == nil {
		return nil
	}
	if _, err := c.Databases(connID); err == nil {
		return nil
	}

	databases, err := lookup.ListDatabases(ctx, connID)
	if err != nil {
		c.logger.Warn("Failed to list databases", zap.String("connection", connID), zap.Error(err))
		return fmt.Errorf("failed to list databases: %w", err)
	}
	c.PutDatabases(connID, databases)
	return nil
}
