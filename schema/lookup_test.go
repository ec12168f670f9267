package schema

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap/zaptest"
)

func newMockedLookup(t *testing.T, dialect Dialect) (*SQLLookup, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}

	lookup := NewSQLLookup(dialect, zaptest.NewLogger(t))
	lookup.Register("conn", db)
	t.Cleanup(func() { lookup.Close() })
	return lookup, mock
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"", DialectInfluxQL, false},
		{"InfluxQL", DialectInfluxQL, false},
		{"information_schema", DialectInformationSchema, false},
		{" trino ", DialectInformationSchema, false},
		{"flux", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDialect(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseDialect(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInfluxQLLookup(t *testing.T) {
	lookup, mock := newMockedLookup(t, DialectInfluxQL)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SHOW DATABASES")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("telemetry").AddRow("_internal"))
	mock.ExpectQuery(regexp.QuoteMeta(`SHOW MEASUREMENTS ON "telemetry"`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("cpu"))
	mock.ExpectQuery(regexp.QuoteMeta(`SHOW FIELD KEYS ON "telemetry" FROM "cpu"`)).
		WillReturnRows(sqlmock.NewRows([]string{"fieldKey", "fieldType"}).
			AddRow("usage_idle", "float").
			AddRow("usage_user", "float"))
	mock.ExpectQuery(regexp.QuoteMeta(`SHOW TAG KEYS ON "telemetry" FROM "cpu"`)).
		WillReturnRows(sqlmock.NewRows([]string{"tagKey"}).AddRow("host"))

	dbs, err := lookup.ListDatabases(ctx, "conn")
	if err != nil {
		t.Fatalf("ListDatabases failed: %v", err)
	}
	if len(dbs) != 2 || dbs[0] != "telemetry" {
		t.Fatalf("Unexpected databases: %v", dbs)
	}

	measurements, err := lookup.ListMeasurements(ctx, "conn", "telemetry")
	if err != nil {
		t.Fatalf("ListMeasurements failed: %v", err)
	}
	if len(measurements) != 1 || measurements[0] != "cpu" {
		t.Fatalf("Unexpected measurements: %v", measurements)
	}

	fields, err := lookup.ListFieldKeys(ctx, "conn", "telemetry", "cpu")
	if err != nil {
		t.Fatalf("ListFieldKeys failed: %v", err)
	}
	if len(fields) != 2 || fields[1] != (Field{Name: "usage_user", Type: "float"}) {
		t.Fatalf("Unexpected fields: %v", fields)
	}

	tags, err := lookup.ListTagKeys(ctx, "conn", "telemetry", "cpu")
	if err != nil {
		t.Fatalf("ListTagKeys failed: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "host" {
		t.Fatalf("Unexpected tags: %v", tags)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled mock expectations: %s", err)
	}
}

func TestInfluxQLLookupQuotesIdentifiers(t *testing.T) {
	lookup, mock := newMockedLookup(t, DialectInfluxQL)

	mock.ExpectQuery(regexp.QuoteMeta(`SHOW MEASUREMENTS ON "my \"db\""`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SHOW MEASUREMENTS ON "dc\\"`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	if _, err := lookup.ListMeasurements(context.Background(), "conn", `my "db"`); err != nil {
		t.Fatalf("ListMeasurements failed: %v", err)
	}
	if _, err := lookup.ListMeasurements(context.Background(), "conn", `dc\`); err != nil {
		t.Fatalf("ListMeasurements failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled mock expectations: %s", err)
	}
}

func TestLookupTimeout(t *testing.T) {
	lookup, mock := newMockedLookup(t, DialectInfluxQL)
	lookup.SetTimeout(20 * time.Millisecond)

	mock.ExpectQuery("SHOW DATABASES").
		WillDelayFor(time.Second).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("telemetry"))

	if _, err := lookup.ListDatabases(context.Background(), "conn"); err == nil {
		t.Fatal("Expected the statement to time out")
	}
}

func TestLookupSetTimeoutConcurrent(t *testing.T) {
	lookup := NewSQLLookup(DialectInfluxQL, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lookup.SetTimeout(time.Duration(i+1) * time.Second)
			if lookup.statementTimeout() <= 0 {
				t.Errorf("Expected a positive timeout")
			}
		}(i)
	}
	wg.Wait()
}

func TestInformationSchemaLookup(t *testing.T) {
	lookup, mock := newMockedLookup(t, DialectInformationSchema)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT schema_name FROM information_schema.schemata")).
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("telemetry"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT table_name FROM information_schema.tables WHERE table_schema = ?")).
		WithArgs("telemetry").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("cpu").AddRow("mem"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT column_name, data_type FROM information_schema.columns")).
		WithArgs("telemetry", "cpu").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).AddRow("usage_idle", "double"))

	dbs, err := lookup.ListDatabases(ctx, "conn")
	if err != nil || len(dbs) != 1 {
		t.Fatalf("ListDatabases = %v, %v", dbs, err)
	}
	measurements, err := lookup.ListMeasurements(ctx, "conn", "telemetry")
	if err != nil || len(measurements) != 2 {
		t.Fatalf("ListMeasurements = %v, %v", measurements, err)
	}
	fields, err := lookup.ListFieldKeys(ctx, "conn", "telemetry", "cpu")
	if err != nil || len(fields) != 1 || fields[0].Type != "double" {
		t.Fatalf("ListFieldKeys = %v, %v", fields, err)
	}

	// no tags without a query
	tags, err := lookup.ListTagKeys(ctx, "conn", "telemetry", "cpu")
	if err != nil || len(tags) != 0 {
		t.Fatalf("ListTagKeys = %v, %v", tags, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled mock expectations: %s", err)
	}
}

func TestLookupErrors(t *testing.T) {
	lookup, mock := newMockedLookup(t, DialectInfluxQL)
	ctx := context.Background()

	if _, err := lookup.ListDatabases(ctx, "missing"); err == nil {
		t.Fatal("Expected error for an unregistered connection")
	}

	queryErr := errors.New("server unavailable")
	mock.ExpectQuery("SHOW DATABASES").WillReturnError(queryErr)
	if _, err := lookup.ListDatabases(ctx, "conn"); !errors.Is(err, queryErr) {
		t.Fatalf("Expected wrapped query error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled mock expectations: %s", err)
	}
}

func TestLookupFeedsCache(t *testing.T) {
	lookup, mock := newMockedLookup(t, DialectInfluxQL)

	mock.ExpectQuery(regexp.QuoteMeta(`SHOW MEASUREMENTS ON "telemetry"`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("cpu"))
	mock.ExpectQuery(regexp.QuoteMeta(`SHOW FIELD KEYS ON "telemetry" FROM "cpu"`)).
		WillReturnRows(sqlmock.NewRows([]string{"fieldKey", "fieldType"}).AddRow("usage_idle", "float"))
	mock.ExpectQuery(regexp.QuoteMeta(`SHOW TAG KEYS ON "telemetry" FROM "cpu"`)).
		WillReturnRows(sqlmock.NewRows([]string{"tagKey"}).AddRow("host"))

	cache := NewCache(zaptest.NewLogger(t))
	if err := cache.EnsureLoaded(context.Background(), lookup, "conn", "telemetry"); err != nil {
		t.Fatalf("EnsureLoaded failed: %v", err)
	}
	ms, err := cache.Measurement("telemetry", "cpu")
	if err != nil || len(ms.Fields) != 1 || len(ms.Tags) != 1 {
		t.Fatalf("Measurement = %v, %v", ms, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled mock expectations: %s", err)
	}
}
