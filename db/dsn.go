package db

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/user/layered-api-go/apperror"
	"github.com/user/layered-api-go/config"
)

// DSN builds the engine-specific connection string for the configured database.
func DSN(cfg config.DatabaseConfig) (string, error) {
	switch config.NormalizeDBType(cfg.DBType) {
	case config.SQLite:
		if cfg.SQLiteFile == "" {
			return "", apperror.NewConfigError("sqlite_file is required for sqlite", nil)
		}
		// WAL lets readers proceed while the single writer holds the connection.
		path := (&url.URL{Path: cfg.SQLiteFile}).EscapedPath()
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path), nil

	case config.MySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.Username
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Database
		mc.ParseTime = true
		mc.Loc = time.UTC
		// Report matched rather than changed rows so an UPDATE with identical values still counts.
		mc.ClientFoundRows = true
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN(), nil

	case config.Postgres:
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.Username, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Path:     "/" + cfg.Database,
			RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
		}
		return u.String(), nil

	default:
		return "", apperror.NewConfigError(fmt.Sprintf("unsupported database type %q", cfg.DBType), nil)
	}
}
