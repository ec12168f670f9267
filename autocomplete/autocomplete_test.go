package autocomplete

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/TFMV/influx-assist/schema"
	"github.com/TFMV/influx-assist/validator"
)

// fakeLookup serves a fixed schema and counts calls.
type fakeLookup struct {
	mu           sync.Mutex
	databases    []string
	measurements map[string][]string
	fields       map[string][]schema.Field
	tags         map[string][]schema.Tag
	err          error
	calls        int
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		databases:    []string{"telemetry"},
		measurements: map[string][]string{"telemetry": {"cpu", "mem"}},
		fields: map[string][]schema.Field{
			"cpu": {{Name: "usage_idle", Type: "float"}},
			"mem": {{Name: "used", Type: "integer"}},
		},
		tags: map[string][]schema.Tag{
			"cpu": {{Name: "host"}},
		},
	}
}

func (f *fakeLookup) ListDatabases(ctx context.Context, connID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.databases, f.err
}

func (f *fakeLookup) ListMeasurements(ctx context.Context, connID, database string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.measurements[database], nil
}

func (f *fakeLookup) ListFieldKeys(ctx context.Context, connID, database, measurement string) ([]schema.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.fields[measurement], f.err
}

func (f *fakeLookup) ListTagKeys(ctx context.Context, connID, database, measurement string) ([]schema.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.tags[measurement], f.err
}

func (f *fakeLookup) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestGenerateSuggestionsLoadsSchema(t *testing.T) {
	lookup := newFakeLookup()
	ac := NewAutocompleteService(lookup, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	text := "SELECT * FROM "
	suggestions, err := ac.GenerateSuggestions(ctx, "conn", "telemetry", text, len(text))
	require.NoError(t, err)

	s, ok := find(suggestions, TypeMeasurement, "cpu")
	require.True(t, ok)
	assert.Equal(t, 85, s.Priority)

	// measurements plus fields and tags of each
	calls := lookup.callCount()
	assert.Equal(t, 5, calls)

	text = "SELECT * FROM cpu WHERE "
	suggestions, err = ac.GenerateSuggestions(ctx, "conn", "telemetry", text, len(text))
	require.NoError(t, err)
	_, ok = find(suggestions, TypeTag, "host")
	assert.True(t, ok)
	assert.Equal(t, calls, lookup.callCount(), "schema should be served from cache")
}

func TestGenerateSuggestionsDegradesOnLookupFailure(t *testing.T) {
	lookup := newFakeLookup()
	lookup.err = errors.New("connection refused")
	ac := NewAutocompleteService(lookup, nil, zaptest.NewLogger(t))

	suggestions, err := ac.GenerateSuggestions(context.Background(), "conn", "telemetry", "SELEC", 5)
	require.NoError(t, err)
	s, ok := find(suggestions, TypeKeyword, "SELECT")
	require.True(t, ok)
	assert.Equal(t, 90, s.Priority)
	assert.False(t, ac.Cache().Has("telemetry"))

	text := "SELECT * FROM "
	suggestions, err = ac.GenerateSuggestions(context.Background(), "conn", "telemetry", text, len(text))
	require.NoError(t, err)
	for _, s := range suggestions {
		assert.NotEqual(t, TypeMeasurement, s.Type)
	}
}

func TestGenerateSuggestionsWithoutLookup(t *testing.T) {
	ac := NewAutocompleteService(nil, nil, nil)

	suggestions, err := ac.GenerateSuggestions(context.Background(), "", "", "SELECT ", 7)
	require.NoError(t, err)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "*", suggestions[0].Label)
}

func TestGenerateSuggestionsCancelled(t *testing.T) {
	ac := NewAutocompleteService(newFakeLookup(), nil, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ac.GenerateSuggestions(ctx, "conn", "telemetry", "SELECT ", 7)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateSuggestionsDatabases(t *testing.T) {
	lookup := newFakeLookup()
	ac := NewAutocompleteService(lookup, nil, zaptest.NewLogger(t))

	text := "SHOW MEASUREMENTS ON "
	suggestions, err := ac.GenerateSuggestions(context.Background(), "conn", "", text, len(text))
	require.NoError(t, err)
	_, ok := find(suggestions, TypeDatabase, "telemetry")
	assert.True(t, ok)
}

func TestMaxSuggestions(t *testing.T) {
	ac := NewAutocompleteService(nil, nil, zaptest.NewLogger(t), WithMaxSuggestions(3))

	suggestions, err := ac.GenerateSuggestions(context.Background(), "", "", "", 0)
	require.NoError(t, err)
	assert.Len(t, suggestions, 3)

	ac.SetMaxSuggestions(0)
	suggestions, err = ac.GenerateSuggestions(context.Background(), "", "", "", 0)
	require.NoError(t, err)
	assert.Greater(t, len(suggestions), 3)
}

func TestClearCache(t *testing.T) {
	lookup := newFakeLookup()
	ac := NewAutocompleteService(lookup, nil, zaptest.NewLogger(t))

	_, err := ac.GenerateSuggestions(context.Background(), "conn", "telemetry", "SELECT ", 7)
	require.NoError(t, err)
	require.True(t, ac.Cache().Has("telemetry"))

	ac.ClearCache()
	assert.False(t, ac.Cache().Has("telemetry"))

	calls := lookup.callCount()
	_, err = ac.GenerateSuggestions(context.Background(), "conn", "telemetry", "SELECT ", 7)
	require.NoError(t, err)
	assert.Greater(t, lookup.callCount(), calls, "cleared schema should be fetched again")
}

func TestStoreWarmStart(t *testing.T) {
	logger := zaptest.NewLogger(t)
	store, err := schema.OpenStore(t.TempDir(), logger)
	require.NoError(t, err)
	defer store.Close()

	ac := NewAutocompleteService(newFakeLookup(), nil, logger, WithStore(store))
	_, err = ac.GenerateSuggestions(context.Background(), "conn", "telemetry", "SELECT ", 7)
	require.NoError(t, err)

	// a new service without a lookup starts from the snapshot
	warm := NewAutocompleteService(nil, nil, logger, WithStore(store))
	require.True(t, warm.Cache().Has("telemetry"))

	text := "SELECT * FROM cpu WHERE "
	suggestions, err := warm.GenerateSuggestions(context.Background(), "conn", "telemetry", text, len(text))
	require.NoError(t, err)
	_, ok := find(suggestions, TypeField, "usage_idle")
	assert.True(t, ok)

	warm.ClearCache()
	cold := NewAutocompleteService(nil, nil, logger, WithStore(store))
	assert.False(t, cold.Cache().Has("telemetry"))
}

func TestServiceValidate(t *testing.T) {
	v, err := validator.New(validator.Options{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	ac := NewAutocompleteService(nil, v, zaptest.NewLogger(t))

	res := ac.Validate("SELECT * FROM cpu")
	assert.True(t, res.IsValid)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, validator.CodeFullScan, res.Warnings[0].Code)
	require.Len(t, res.Suggestions, 1)
	require.NotNil(t, res.Suggestions[0].QuickFix)
	assert.Equal(t, "SELECT * FROM cpu WHERE time > now() - 1h", res.Suggestions[0].QuickFix.ReplacementText)
}

func TestConcurrentSuggestions(t *testing.T) {
	ac := NewAutocompleteService(newFakeLookup(), nil, zaptest.NewLogger(t))
	texts := []string{"SELECT ", "SELECT * FROM ", "SELECT * FROM cpu WHERE ", "SHOW "}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := texts[i%len(texts)]
			_, err := ac.GenerateSuggestions(context.Background(), "conn", "telemetry", text, len(text))
			assert.NoError(t, err)
			ac.Validate(text)
		}(i)
	}
	wg.Wait()
	assert.True(t, ac.Cache().Has("telemetry"))
}
