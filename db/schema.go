package db

import (
	"fmt"
	"strings"

	"github.com/user/layered-api-go/config"
)

// ColumnType is the portable column type of a declarative table definition.
type ColumnType int

const (
	Integer ColumnType = iota
	String
	Boolean
	DateTime
)

// Column describes one column of a table.
type Column struct {
	Name          string
	Type          ColumnType
	Size          int // VARCHAR length for String columns
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	Nullable      bool
	Default       string // raw SQL literal, e.g. "TRUE"
}

// Table is a declarative table definition rendered to DDL per dialect.
type Table struct {
	Name    string
	Columns []Column
}

// CreateSQL renders an idempotent CREATE TABLE statement for the given dialect.
func (t Table) CreateSQL(dialect string) (string, error) {
	dialect = config.NormalizeDBType(dialect)
	switch dialect {
	case config.SQLite, config.MySQL, config.Postgres:
	default:
		return "", fmt.Errorf("unsupported dialect %q", dialect)
	}

	defs := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		def, err := columnSQL(col, dialect)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		defs = append(defs, "\t"+def)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s (\n%s\n)", t.Name, strings.Join(defs, ",\n"))
	if dialect == config.MySQL {
		sb.WriteString(" ENGINE=InnoDB DEFAULT CHARSET=utf8mb4")
	}
	return sb.String(), nil
}

func columnSQL(col Column, dialect string) (string, error) {
	if col.PrimaryKey && col.AutoIncrement {
		if col.Type != Integer {
			return "", fmt.Errorf("column %s: auto-increment requires an integer primary key", col.Name)
		}
		switch dialect {
		case config.SQLite:
			return col.Name + " INTEGER PRIMARY KEY AUTOINCREMENT", nil
		case config.MySQL:
			return col.Name + " BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY", nil
		default:
			return col.Name + " BIGSERIAL PRIMARY KEY", nil
		}
	}

	typ, err := columnType(col, dialect)
	if err != nil {
		return "", err
	}
	parts := []string{col.Name, typ}
	if col.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	} else if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.Unique {
		parts = append(parts, "UNIQUE")
	}
	if col.Default != "" {
		parts = append(parts, "DEFAULT "+col.Default)
	}
	return strings.Join(parts, " "), nil
}

func columnType(col Column, dialect string) (string, error) {
	switch col.Type {
	case Integer:
		if dialect == config.SQLite {
			return "INTEGER", nil
		}
		return "BIGINT", nil
	case String:
		if col.Size <= 0 {
			return "", fmt.Errorf("column %s: string columns need a size", col.Name)
		}
		return fmt.Sprintf("VARCHAR(%d)", col.Size), nil
	case Boolean:
		return "BOOLEAN", nil
	case DateTime:
		switch dialect {
		case config.MySQL:
			return "DATETIME(6)", nil
		case config.Postgres:
			return "TIMESTAMPTZ", nil
		default:
			return "DATETIME", nil
		}
	default:
		return "", fmt.Errorf("column %s: unknown column type %d", col.Name, col.Type)
	}
}
