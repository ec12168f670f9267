package schema

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Refresher periodically re-fetches every database already present in a
// cache. Refreshing only replaces entries; nothing is evicted.
type Refresher struct {
	cache    *Cache
	lookup   Lookup
	connID   string
	interval time.Duration
	logger   *zap.Logger

	// OnRefresh, when set, is called after each database is reloaded.
	OnRefresh func(database string)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewRefresher creates a refresher for the databases of connID
func NewRefresher(cache *Cache, lookup Lookup, connID string, interval time.Duration, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		cache:    cache,
		lookup:   lookup,
		connID:   connID,
		interval: interval,
		logger:   logger.With(zap.String("component", "schema_refresher"), zap.String("connection", connID)),
	}
}

// Start begins the background refresh loop. Calling Start twice is a no-op.
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		r.logger.Info("Background refresh already running")
		return
	}
	if r.interval <= 0 {
		r.logger.Info("Background refresh disabled")
		return
	}

	r.running = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.logger.Info("Starting background schema refresh", zap.Duration("interval", r.interval))

	go r.run(r.stop, r.done)
}

func (r *Refresher) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RefreshAll(context.Background())
		case <-stop:
			r.logger.Info("Background refresh stopped")
			return
		}
	}
}

// Stop halts the refresh loop and waits for it to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	<-done
}

// RefreshAll reloads every cached database once and returns how many succeeded.
func (r *Refresher) RefreshAll(ctx context.Context) int {
	refreshed := 0
	for _, db := range r.cache.CachedDatabases() {
		if err := r.cache.Load(ctx, r.lookup, r.connID, db); err != nil {
			r.logger.Error("Background refresh failed", zap.String("database", db), zap.Error(err))
			continue
		}
		refreshed++
		if r.OnRefresh != nil {
			r.OnRefresh(db)
		}
	}
	return refreshed
}
