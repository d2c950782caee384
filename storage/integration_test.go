package storage

import (
	"os"
	"testing"
)

// TestExternalDatabaseConnection connects to the database servers named in
// the environment. It is skipped unless RUN_INTEGRATION_TESTS=true.
func TestExternalDatabaseConnection(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}
	tests := []struct {
		driver DriverType
		envVar string
	}{
		{driver: DriverMySQL, envVar: "MYSQL_DSN"},
		{driver: DriverPostgres, envVar: "POSTGRES_DSN"},
	}
	for _, test := range tests {
		t.Run(
			string(test.driver), func(t *testing.T) {
				dsn := os.Getenv(test.envVar)
				if dsn == "" {
					t.Skipf("Skipping %s test. Set %s environment variable", test.driver, test.envVar)
				}
				store, err := NewStorage(
					Config{
						Driver: test.driver,
						DSN:    dsn,
					},
				)
				if err != nil {
					t.Fatalf("Failed to open %s storage: %v", test.driver, err)
				}
				sqlDB, err := store.DB().DB()
				if err != nil {
					t.Fatalf("Failed to get SQL DB: %v", err)
				}
				if err = sqlDB.Ping(); err != nil {
					t.Fatalf("Failed to ping %s database: %v", test.driver, err)
				}
			},
		)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		expected string
	}{
		{
			name:     "data dir",
			cfg:      Config{DataDir: "/var/lib/registrar"},
			expected: "/var/lib/registrar/registrar.db?_busy_timeout=5000&_foreign_keys=on",
		},
		{
			name:     "dsn with query",
			cfg:      Config{DSN: "file:test.db?cache=shared"},
			expected: "file:test.db?cache=shared&_busy_timeout=5000&_foreign_keys=on",
		},
		{
			name:     "explicit busy timeout",
			cfg:      Config{DSN: "test.db?_busy_timeout=100"},
			expected: "test.db?_busy_timeout=100",
		},
	}
	for _, test := range tests {
		t.Run(
			test.name, func(t *testing.T) {
				if got := sqliteDSN(test.cfg); got != test.expected {
					t.Errorf("expected %q, got %q", test.expected, got)
				}
			},
		)
	}
}

func TestDSN(t *testing.T) {
	conf := DSNConf{
		User:     "reg",
		Password: "secret",
		Host:     "db",
		DB:       "registrar",
	}
	dsn, err := DSN(DriverPostgres, conf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != "host=db user=reg password=secret dbname=registrar port=5432" {
		t.Errorf("unexpected postgres dsn: %s", dsn)
	}
	dsn, err = DSN(DriverMySQL, conf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dsn != "reg:secret@tcp(db:3306)/registrar?charset=utf8mb4&parseTime=True" {
		t.Errorf("unexpected mysql dsn: %s", dsn)
	}
	if _, err = DSN(DriverSQLite, conf); err == nil {
		t.Error("expected error for sqlite")
	}
}
