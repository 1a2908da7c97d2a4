package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-street-backend/config"
)

func TestSQLiteDSN(t *testing.T) {
	testCases := []struct {
		name     string
		in       string
		expected string
	}{
		{
			name:     "bare path",
			in:       "/tmp/street.db",
			expected: "file:/tmp/street.db?_txlock=immediate&_busy_timeout=5000&_foreign_keys=1",
		},
		{
			name:     "existing query",
			in:       "file:street.db?cache=private",
			expected: "file:street.db?cache=private&_txlock=immediate&_busy_timeout=5000&_foreign_keys=1",
		},
		{
			name:     "explicit option is kept",
			in:       "file:street.db?_busy_timeout=100",
			expected: "file:street.db?_busy_timeout=100&_txlock=immediate&_foreign_keys=1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SQLiteDSN(tc.in))
		})
	}
}

func TestInit_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "street.db"),
		LogLevel: "silent",
	}

	gormDB, err := Init(cfg)
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	for _, table := range []string{"spaces", "vendors", "space_requests", "permits", "audit_logs", "notifications", "push_subscriptions"} {
		assert.True(t, gormDB.Migrator().HasTable(table), "table %s should exist", table)
	}
}

func TestInit_UnknownDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}
