package db

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/user/layered-api-go/config"
)

var accounts = Table{
	Name: "accounts",
	Columns: []Column{
		{Name: "id", Type: Integer, PrimaryKey: true, AutoIncrement: true},
		{Name: "login", Type: String, Size: 50, Unique: true},
		{Name: "nickname", Type: String, Size: 100, Nullable: true},
		{Name: "enabled", Type: Boolean, Default: "TRUE"},
		{Name: "created_at", Type: DateTime},
	},
}

func TestCreateSQL(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		dialect string
		want    string
	}{
		{config.SQLite, `CREATE TABLE IF NOT EXISTS accounts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	login VARCHAR(50) NOT NULL UNIQUE,
	nickname VARCHAR(100),
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at DATETIME NOT NULL
)`},
		{config.MySQL, `CREATE TABLE IF NOT EXISTS accounts (
	id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	login VARCHAR(50) NOT NULL UNIQUE,
	nickname VARCHAR(100),
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
		{"postgresql", `CREATE TABLE IF NOT EXISTS accounts (
	id BIGSERIAL PRIMARY KEY,
	login VARCHAR(50) NOT NULL UNIQUE,
	nickname VARCHAR(100),
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL
)`},
	}
	for _, tt := range tests {
		c.Run(tt.dialect, func(c *qt.C) {
			got, err := accounts.CreateSQL(tt.dialect)
			c.Assert(err, qt.IsNil)
			c.Assert(got, qt.Equals, tt.want)
		})
	}
}

func TestCreateSQLErrors(t *testing.T) {
	c := qt.New(t)

	_, err := accounts.CreateSQL("oracle")
	c.Assert(err, qt.ErrorMatches, `unsupported dialect "oracle"`)

	bad := Table{Name: "t", Columns: []Column{{Name: "code", Type: String}}}
	_, err = bad.CreateSQL(config.SQLite)
	c.Assert(err, qt.ErrorMatches, `table t: column code: string columns need a size`)

	badKey := Table{Name: "t", Columns: []Column{{Name: "id", Type: String, Size: 8, PrimaryKey: true, AutoIncrement: true}}}
	_, err = badKey.CreateSQL(config.MySQL)
	c.Assert(err, qt.ErrorMatches, `table t: column id: auto-increment requires an integer primary key`)
}
