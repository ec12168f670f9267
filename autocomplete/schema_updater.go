package autocomplete

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/trinodb/trino-go-client/trino"
	"go.uber.org/zap"

	"github.com/TFMV/influx-assist/config"
	"github.com/TFMV/influx-assist/schema"
)

// OpenLookup opens the profile's database handle and registers it under
// connID on a new SQL lookup.
func OpenLookup(profile config.Profile, connID string, logger *zap.Logger) (*schema.SQLLookup, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialect, err := schema.ParseDialect(profile.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(profile.Driver, profile.DataSourceName())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	lookup := schema.NewSQLLookup(dialect, logger)
	lookup.Register(connID, db)
	logger.Debug("Opened schema lookup",
		zap.String("connection", connID),
		zap.String("driver", profile.Driver),
		zap.String("dialect", string(dialect)))
	return lookup, nil
}

// StartSchemaUpdater starts a background refresh of every database cached by
// the service. Refreshed databases are written to the service's snapshot
// store, if any. Stop the returned refresher when done.
func StartSchemaUpdater(ac *AutocompleteService, lookup schema.Lookup, connID string, interval time.Duration, logger *zap.Logger) *schema.Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.With(zap.String("component", "schema_updater"))

	refresher := schema.NewRefresher(ac.Cache(), lookup, connID, interval, log)
	refresher.OnRefresh = ac.persist
	refresher.Start()
	return refresher
}

// FetchAndCacheSchema loads database into the service's cache, replacing
// whatever was cached for it, and saves the snapshot.
func FetchAndCacheSchema(ctx context.Context, ac *AutocompleteService, lookup schema.Lookup, connID, database string) error {
	log := ac.logger.With(zap.String("component", "schema_updater"), zap.String("database", database))

	log.Info("Refreshing schema cache...")
	if err := ac.Cache().Load(ctx, lookup, connID, database); err != nil {
		log.Error("Failed to refresh schema cache", zap.Error(err))
		return fmt.Errorf("failed to refresh schema cache: %w", err)
	}
	ac.persist(database)

	log.Info("Schema cache updated successfully")
	return nil
}
