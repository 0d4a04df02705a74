package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	memoryPath         = ":memory:"
	defaultBusyTimeout = 5 * time.Second
)

// Options describes the SQLite database holding visitor preferences.
type Options struct {
	Path string
	// Logger receives gorm warnings and slow queries. Nil falls back to the logrus standard logger.
	Logger      *logrus.Logger
	BusyTimeout time.Duration
	Pool        Pool
}

// Pool bounds the database/sql connection pool. Zero fields keep the database/sql defaults.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// Open connects to the SQLite file at opts.Path in WAL mode, creating its directory if needed.
func Open(opts Options) (*gorm.DB, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, eris.New("database path is required")
	}
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}

	busyTimeout := opts.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	conn, err := gorm.Open(sqlite.Open(buildDSN(path, busyTimeout)), &gorm.Config{
		Logger: NewGormLogger(opts.Logger),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "opening sqlite database %s", path)
	}

	sqlDB, err := SQLDB(conn)
	if err != nil {
		return nil, err
	}
	opts.Pool.apply(sqlDB)

	if err := applyPragmas(conn, busyTimeout); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return conn, nil
}

// buildDSN carries the pragmas in the connection string so every pooled connection gets them.
func buildDSN(path string, busyTimeout time.Duration) string {
	params := url.Values{}
	params.Set("_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10))
	params.Set("_foreign_keys", "1")
	params.Set("_journal_mode", "WAL")

	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}
	return path + separator + params.Encode()
}

func ensureParentDir(path string) error {
	if path == memoryPath || strings.HasPrefix(path, "file:") {
		return nil
	}

	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "creating database directory %s", dir)
	}
	return nil
}

func (p Pool) apply(sqlDB *sql.DB) {
	if p.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(p.MaxOpen)
	}
	if p.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(p.MaxIdle)
	}
	if p.MaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(p.MaxIdleTime)
	}
	if p.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(p.MaxLifetime)
	}
}

func applyPragmas(conn *gorm.DB, busyTimeout time.Duration) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if err := conn.Exec(pragma).Error; err != nil {
			return eris.Wrapf(err, "applying %q", pragma)
		}
	}
	return nil
}

// Close releases the connection pool. A nil handle is a no-op.
func Close(conn *gorm.DB) error {
	if conn == nil {
		return nil
	}
	sqlDB, err := SQLDB(conn)
	if err != nil {
		return err
	}
	return eris.Wrap(sqlDB.Close(), "closing database connection")
}

// Ping verifies the database answers within ctx.
func Ping(ctx context.Context, conn *gorm.DB) error {
	sqlDB, err := SQLDB(conn)
	if err != nil {
		return err
	}
	return eris.Wrap(sqlDB.PingContext(ctx), "pinging database")
}

// SQLDB returns the *sql.DB behind conn.
func SQLDB(conn *gorm.DB) (*sql.DB, error) {
	if conn == nil {
		return nil, eris.New("database handle is nil")
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, eris.Wrap(err, "retrieving sql.DB")
	}
	return sqlDB, nil
}
