// Package autocomplete predicts the next token of a partial InfluxQL query
// and ranks completion candidates for it.
package autocomplete

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/TFMV/influx-assist/schema"
	"github.com/TFMV/influx-assist/validator"
)

// DefaultMaxSuggestions is the default cap on returned suggestions.
const DefaultMaxSuggestions = 20

// AutocompleteService is the assistance engine. It owns its schema cache;
// separate services never share cached schema.
type AutocompleteService struct {
	lookup         schema.Lookup
	cache          *schema.Cache
	store          *schema.Store
	validator      *validator.Validator
	logger         *zap.Logger
	mu             sync.RWMutex
	maxSuggestions int
}

// Option configures an AutocompleteService.
type Option func(*AutocompleteService)

// WithStore warms the cache from a persisted snapshot and saves every
// database fetched afterwards.
func WithStore(store *schema.Store) Option {
	return func(ac *AutocompleteService) {
		ac.store = store
	}
}

// WithMaxSuggestions caps the number of returned suggestions. Zero means no cap.
func WithMaxSuggestions(max int) Option {
	return func(ac *AutocompleteService) {
		ac.maxSuggestions = max
	}
}

// NewAutocompleteService creates a new autocomplete service. A nil lookup
// restricts suggestions to keywords, functions, operators and templates; a nil
// validator uses the default rules.
func NewAutocompleteService(lookup schema.Lookup, v *validator.Validator, logger *zap.Logger, opts ...Option) *AutocompleteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if v == nil {
		v = validator.Default()
	}

	ac := &AutocompleteService{
		lookup:         lookup,
		cache:          schema.NewCache(logger),
		validator:      v,
		logger:         logger.With(zap.String("component", "autocomplete")),
		maxSuggestions: DefaultMaxSuggestions,
	}
	for _, opt := range opts {
		opt(ac)
	}

	if ac.store != nil {
		if err := ac.store.LoadInto(ac.cache); err != nil {
			// Non-fatal, schema is fetched on demand
			ac.logger.Warn("Failed to initialize from schema snapshot", zap.Error(err))
		}
	}
	return ac
}

// SetMaxSuggestions sets the maximum number of suggestions to return
func (ac *AutocompleteService) SetMaxSuggestions(max int) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.maxSuggestions = max
}

// Cache returns the service's schema cache.
func (ac *AutocompleteService) Cache() *schema.Cache {
	return ac.cache
}

// GenerateSuggestions returns ranked suggestions for text at cursor. Schema
// for database is fetched on first use; lookup failures only reduce the
// candidates. The error is non-nil only when ctx is done.
func (ac *AutocompleteService) GenerateSuggestions(ctx context.Context, connID, database, text string, cursor int) ([]Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ac.ensureSchema(ctx, connID, database)

	state := Analyze(text, cursor)
	state.CurrentDatabase = database
	state.connID = connID

	if state.NextExpected == ExpectIdentifier || state.ClauseExpected == ExpectIdentifier {
		if err := ac.cache.EnsureDatabases(ctx, ac.lookup, connID); err != nil {
			ac.logger.Debug("Continuing without database names", zap.Error(err))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	suggestions := Generate(state, ac.cache)

	ac.logger.Debug("Generated suggestions",
		zap.String("token", state.CurrentToken),
		zap.Int("cursor", cursor),
		zap.String("clause", string(state.CurrentClause)),
		zap.String("expected", string(state.NextExpected)),
		zap.Int("count", len(suggestions)))

	ac.mu.RLock()
	max := ac.maxSuggestions
	ac.mu.RUnlock()
	if max > 0 && len(suggestions) > max {
		suggestions = suggestions[:max]
	}
	return suggestions, nil
}

func (ac *AutocompleteService) ensureSchema(ctx context.Context, connID, database string) {
	if database == "" || ac.cache.Has(database) {
		return
	}
	if err := ac.cache.EnsureLoaded(ctx, ac.lookup, connID, database); err != nil {
		ac.logger.Debug("Continuing without schema", zap.String("database", database), zap.Error(err))
		return
	}
	ac.persist(database)
}

// persist saves a freshly loaded database to the snapshot store.
func (ac *AutocompleteService) persist(database string) {
	if ac.store == nil || !ac.cache.Has(database) {
		return
	}
	measurements, err := ac.cache.Measurements(database)
	if err != nil {
		return
	}
	if err := ac.store.Save(database, measurements, ac.cache.Snapshot()[database]); err != nil {
		ac.logger.Warn("Failed to save schema snapshot", zap.String("database", database), zap.Error(err))
	}
}

// Validate checks text with the service's validator.
func (ac *AutocompleteService) Validate(text string) validator.ValidationResult {
	return ac.validator.Validate(text)
}

// ClearCache drops all cached schema, including the persisted snapshot.
func (ac *AutocompleteService) ClearCache() {
	ac.cache.Clear()
	if ac.store != nil {
		if err := ac.store.Clear(); err != nil {
			ac.logger.Warn("Failed to clear schema snapshot", zap.Error(err))
		}
	}
	ac.logger.Info("Schema cache cleared")
}
