package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ignite/membership-admin/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverName(t *testing.T) {
	tests := map[string]string{
		"":           DriverPostgres,
		"postgresql": DriverPostgres,
		"PG":         DriverPostgres,
		"mysql":      DriverMySQL,
		"MariaDB":    DriverMySQL,
	}
	for in, want := range tests {
		got, err := DriverName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := DriverName("oracle")
	assert.Error(t, err)
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := NormalizeDSN(DriverMySQL, "admin:secret@tcp(db:3306)/membership")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")

	pg := "postgres://admin:secret@db:5432/membership?sslmode=disable"
	dsn, err = NormalizeDSN(DriverPostgres, pg)
	require.NoError(t, err)
	assert.Equal(t, pg, dsn)

	_, err = NormalizeDSN(DriverMySQL, "admin:secret@tcp(db:3306")
	assert.Error(t, err)
}

func TestOpen_RequiresURL(t *testing.T) {
	_, _, err := Open(context.Background(), config.DatabaseConfig{})
	assert.ErrorIs(t, err, ErrNoURL)
}

func TestConfigure(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	Configure(db, config.DatabaseConfig{MaxOpenConns: 7})
	assert.Equal(t, 7, db.Stats().MaxOpenConnections)
}
