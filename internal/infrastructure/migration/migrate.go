package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator drives golang-migrate over the versioned SQL pairs in a
// migrations directory.
type Migrator struct {
	mig    *migrate.Migrate
	logger *zap.Logger
}

// New wraps an open postgres connection in a Migrator reading from
// migrationsPath.
func New(db *sql.DB, migrationsPath string, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres migration driver: %w", err)
	}

	mig, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	return &Migrator{mig: mig, logger: logger}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	return m.run("apply pending migrations", m.mig.Up)
}

// Down rolls back every applied migration.
func (m *Migrator) Down() error {
	return m.run("roll back all migrations", m.mig.Down)
}

// Steps applies n migrations forward, or -n backward.
func (m *Migrator) Steps(n int) error {
	return m.run(fmt.Sprintf("apply %d migration steps", n), func() error {
		return m.mig.Steps(n)
	})
}

// GoTo migrates up or down until the schema sits at version.
func (m *Migrator) GoTo(version uint) error {
	return m.run(fmt.Sprintf("migrate to version %d", version), func() error {
		return m.mig.Migrate(version)
	})
}

// run executes op and logs where the schema ended up. ErrNoChange counts
// as success: the schema already matched.
func (m *Migrator) run(what string, op func() error) error {
	m.logger.Info("running migrations", zap.String("op", what))

	err := op()
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}

	if version, dirty, verr := m.Version(); verr == nil {
		m.logger.Info("migrations finished",
			zap.Uint("version", version),
			zap.Bool("dirty", dirty),
		)
	}
	return nil
}

// Version reports the current schema version. A database with no applied
// migrations reports version 0.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.mig.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, nil
}

// Force stamps the schema version without running any SQL. This is the
// repair path for a dirty version left by a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("forcing migration version", zap.Int("version", version))

	if err := m.mig.Force(version); err != nil {
		return fmt.Errorf("force version %d: %w", version, err)
	}
	return nil
}

// Drop removes every object in the connected database.
func (m *Migrator) Drop() error {
	m.logger.Warn("dropping all database objects")

	if err := m.mig.Drop(); err != nil {
		return fmt.Errorf("drop database: %w", err)
	}
	return nil
}

// Close releases the source and database handles.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.mig.Close()
	return errors.Join(sourceErr, dbErr)
}
