package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockDatabase wires a Database around a sqlmock pool. Pings are
// monitored and gorm's open-time ping is disabled, so each test owns
// exactly the expectations it declares.
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		DisableAutomaticPing:   true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB, pool: mockDB}, mock
}

func TestDatabasePing(t *testing.T) {
	t.Run("reports a live connection", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		mock.ExpectPing()

		err := db.Ping(context.Background())

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("surfaces pool errors", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		mock.ExpectPing().WillReturnError(assert.AnError)

		err := db.Ping(context.Background())

		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("honours context cancellation", func(t *testing.T) {
		db, _ := newMockDatabase(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := db.Ping(ctx)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDatabaseStats(t *testing.T) {
	t.Run("mirrors the pool configuration", func(t *testing.T) {
		db, _ := newMockDatabase(t)
		db.pool.SetMaxOpenConns(7)

		stats := db.Stats()

		assert.Equal(t, 7, stats.MaxOpenConnections)
	})

	t.Run("open connections split into in-use and idle", func(t *testing.T) {
		db, _ := newMockDatabase(t)

		stats := db.Stats()

		assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
	})
}

func TestDatabaseClose(t *testing.T) {
	t.Run("releases the pool", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		mock.ExpectClose()

		err := db.Close()

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWithGormLogger(t *testing.T) {
	t.Run("overrides the default silent logger", func(t *testing.T) {
		custom := logger.Default.LogMode(logger.Info)
		cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

		WithGormLogger(custom)(cfg)

		assert.Same(t, custom, cfg.Logger)
	})
}
