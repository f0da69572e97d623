package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/titledesk/backend/internal/infrastructure/config"
	"github.com/titledesk/backend/internal/infrastructure/logger"
	"github.com/titledesk/backend/internal/infrastructure/migration"
)

const defaultMigrationsPath = "migrations"

func main() {
	var (
		pathFlag string
		logLevel string
	)
	flag.StringVar(&pathFlag, "path", "", "path to the migrations directory (default ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	command, rest := args[0], args[1:]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "initialize logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	migrationsPath, err := resolveMigrationsPath(pathFlag)
	if err != nil {
		log.Fatal("resolve migrations path", zap.Error(err))
	}

	log.Info("migration tool started",
		zap.String("command", command),
		zap.String("migrations_path", migrationsPath),
	)

	// create and list work on the filesystem alone.
	switch command {
	case "create":
		runCreate(log, migrationsPath, rest)
		return
	case "list":
		runList(log, migrationsPath)
		return
	}

	// Everything else needs the database.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("ping database", zap.Error(err))
	}

	m, err := migration.New(db, migrationsPath, log)
	if err != nil {
		log.Fatal("create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			log.Fatal("migration up failed", zap.Error(err))
		}

	case "down":
		if err := m.Down(); err != nil {
			log.Fatal("migration down failed", zap.Error(err))
		}

	case "step":
		n, err := strconv.Atoi(requireArg(log, rest, "migrate step <n>"))
		if err != nil {
			log.Fatal("step count must be an integer", zap.String("value", rest[0]))
		}
		if err := m.Steps(n); err != nil {
			log.Fatal("migration step failed", zap.Error(err))
		}

	case "goto":
		version, err := strconv.ParseUint(requireArg(log, rest, "migrate goto <version>"), 10, 32)
		if err != nil {
			log.Fatal("version must be a number", zap.String("value", rest[0]))
		}
		if err := m.GoTo(uint(version)); err != nil {
			log.Fatal("migration goto failed", zap.Error(err))
		}

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal("read version failed", zap.Error(err))
		}
		if version == 0 {
			log.Info("no migrations applied")
		} else {
			log.Info("current migration version",
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
			)
		}

	case "force":
		version, err := strconv.Atoi(requireArg(log, rest, "migrate force <version>"))
		if err != nil {
			log.Fatal("version must be a number", zap.String("value", rest[0]))
		}
		if err := m.Force(version); err != nil {
			log.Fatal("force version failed", zap.Error(err))
		}

	case "drop":
		if !slices.Contains(rest, "-confirm") && !slices.Contains(rest, "--confirm") {
			log.Fatal("refusing to drop without -confirm; this destroys every object in the database")
		}
		if err := m.Drop(); err != nil {
			log.Fatal("drop failed", zap.Error(err))
		}

	default:
		log.Error("unknown command", zap.String("command", command))
		printUsage()
		os.Exit(2)
	}
}

func runCreate(log *zap.Logger, dir string, rest []string) {
	name := requireArg(log, rest, "migrate create <name> [description]")
	description := ""
	if len(rest) > 1 {
		description = rest[1]
	}

	mf, err := migration.Create(dir, name, description)
	if err != nil {
		log.Fatal("create migration failed", zap.Error(err))
	}
	log.Info("migration created",
		zap.String("version", mf.Version),
		zap.String("up", mf.UpPath),
		zap.String("down", mf.DownPath),
	)
}

func runList(log *zap.Logger, dir string) {
	names, err := migration.List(dir)
	if err != nil {
		log.Fatal("list migrations failed", zap.Error(err))
	}
	if len(names) == 0 {
		log.Info("no migrations found")
		return
	}

	log.Info("available migrations", zap.Int("count", len(names)))
	for _, name := range names {
		fmt.Println("  -", name)
	}
}

// requireArg returns the first positional argument after the command, or
// exits with the usage line.
func requireArg(log *zap.Logger, rest []string, usage string) string {
	if len(rest) == 0 {
		log.Fatal("missing argument", zap.String("usage", usage))
	}
	return rest[0]
}

// resolveMigrationsPath prefers the -path flag, then ./migrations, then
// migrations/ relative to the installed binary.
func resolveMigrationsPath(flagPath string) (string, error) {
	if flagPath != "" {
		return filepath.Abs(flagPath)
	}
	if _, err := os.Stat(defaultMigrationsPath); err == nil {
		return filepath.Abs(defaultMigrationsPath)
	}
	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), "..", "..", defaultMigrationsPath)
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Abs(candidate)
		}
	}
	return filepath.Abs(defaultMigrationsPath)
}

func printUsage() {
	fmt.Println(`TitleDesk database migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    apply all pending migrations
  down                  roll back all migrations
  step <n>              apply n migrations (negative n rolls back)
  goto <version>        migrate to a specific version
  version               show the current schema version
  force <version>       stamp the version without running SQL
  drop -confirm         drop every database object
  create <name> [desc]  write a new up/down migration pair
  list                  list the migration pairs on disk

Flags:
  -path string          migrations directory (default ./migrations)
  -log-level string     debug, info, warn or error (default info)

The database connection comes from the TITLEDESK_DATABASE_* environment
variables (host, port, user, password, dbname, sslmode).

Examples:
  migrate up
  migrate step -1
  migrate create add_tracker_credentials_table "Store tracker connections per user"
  migrate version`)
}
