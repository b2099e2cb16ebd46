package dbh

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/logs"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// DBConnectFlags are flags passed to OpenDB.
type DBConnectFlags int

const DriverSqlite = "sqlite3"

const (
	// DBConnectFlagWipeDB causes the entire DB to erased, and re-initialized from scratch (useful for unit tests).
	DBConnectFlagWipeDB DBConnectFlags = 1 << iota
)

// MakeMigrations turns a sequence of SQL expression into burntsushi migrations.
func MakeMigrations(log logs.Log, sql []string) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0
	for _, str := range sql {
		migs = append(migs, MakeMigrationFromSQL(log, &idx, str))
	}
	return migs
}

// MakeMigrationFromSQL turns an SQL string into a burntsushi migration
func MakeMigrationFromSQL(log logs.Log, migrationNumber *int, sql string) migration.Migrator {
	idx := *migrationNumber + 1
	*migrationNumber++

	return func(tx migration.LimitedTx) error {
		summary := strings.TrimSpace(sql)
		l := min(len(summary), 40)
		if firstNewline := strings.IndexAny(summary, "\n\r"); firstNewline != -1 && firstNewline < l {
			l = firstNewline
		}
		log.Infof("Running migration %v: '%v...'", idx, summary[:l])
		_, err := tx.Exec(sql)
		return err
	}
}

// DSN for an sqlite file. WAL lets the HTTP readers continue while a crossing is being written.
func SqliteDSN(filename string) string {
	return filename + "?_journal_mode=WAL&_busy_timeout=5000"
}

// OpenDB creates a new sqlite DB, or opens an existing one, and runs all the migrations before returning.
func OpenDB(log logs.Log, filename string, migrations []migration.Migrator, flags DBConnectFlags) (*gorm.DB, error) {
	if flags&DBConnectFlagWipeDB != 0 {
		if err := wipe(log, filename); err != nil {
			return nil, err
		}
	}

	dsn := SqliteDSN(filename)
	db, err := migration.Open(DriverSqlite, dsn, migrations)
	if err != nil {
		return nil, fmt.Errorf("Failed to migrate database '%v': %w", filename, err)
	}
	db.Close()

	gormDB, err := gormOpen(log, dsn)
	if err != nil {
		return nil, fmt.Errorf("Failed to open database '%v': %w", filename, err)
	}
	return gormDB, nil
}

// Erase the database file, along with any WAL leftovers
func wipe(log logs.Log, filename string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		err := os.Remove(filename + suffix)
		if err == nil && suffix == "" {
			log.Warnf("Erased database '%v'", filename)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// gormLogWriter sends gorm's warnings (eg slow queries) to our log
type gormLogWriter struct {
	log logs.Log
}

func (w *gormLogWriter) Printf(format string, args ...interface{}) {
	w.log.Warnf(strings.TrimSpace(format), args...)
}

func gormOpen(log logs.Log, dsn string) (*gorm.DB, error) {
	newLogger := logger.New(
		&gormLogWriter{log: log},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true, // This is the primary reason we use a custom logger. Record not found is just never a loggable thing.
			Colorful:                  false,
		},
	)

	config := &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			// Disable pluralization of tables.
			// This is just another thing to worry about when writing our own migrations, so rather disable it.
			SingularTable: true,
		},
		Logger: newLogger,
	}
	return gorm.Open(sqlite.Open(dsn), config)
}
