package schema

import (
	"fmt"
	"strings"

	"github.com/kbukum/dbsnap/errors"
)

// Dialect renders DDL for one database engine.
type Dialect interface {
	// Name returns the dialect name (postgres, sqlite).
	Name() string
	// QuoteIdent quotes a table or column name.
	QuoteIdent(name string) string
	// ColumnSQL renders a column definition inside CREATE TABLE.
	ColumnSQL(t Table, c Column) (string, error)
	// CreateTableSQL renders CREATE TABLE for t.
	CreateTableSQL(t Table) (string, error)
	// AddColumnSQL renders ALTER TABLE ... ADD COLUMN.
	AddColumnSQL(t Table, c Column) (string, error)
	// DropTableSQL renders DROP TABLE.
	DropTableSQL(name string) string
	// SupportsTransactionalDDL reports whether DDL can run inside a transaction.
	SupportsTransactionalDDL() bool
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "postgres", "postgresql":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return nil, fmt.Errorf("schema: unknown dialect %q", name)
	}
}

var (
	// Postgres renders PostgreSQL DDL.
	Postgres Dialect = postgres{}
	// SQLite renders SQLite DDL.
	SQLite Dialect = sqlite{}
)

func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// createTable renders the shared CREATE TABLE shape. A single primary key
// column is declared inline; composite keys become a table constraint.
func createTable(d Dialect, t Table) (string, error) {
	pk := t.PrimaryKey()
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		def, err := d.ColumnSQL(t, c)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	if len(pk) > 1 {
		names := make([]string, len(pk))
		for i, c := range pk {
			names[i] = d.QuoteIdent(c.Name)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(names, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", d.QuoteIdent(t.Name), strings.Join(defs, ", ")), nil
}

func inlinePrimaryKey(t Table, c Column) bool {
	return c.PrimaryKey && len(t.PrimaryKey()) == 1
}

// --- postgres ---

type postgres struct{}

func (postgres) Name() string                   { return "postgres" }
func (postgres) QuoteIdent(name string) string  { return quoteDouble(name) }
func (postgres) SupportsTransactionalDDL() bool { return true }

func (postgres) columnType(c Column) string {
	switch c.Type {
	case TypeSerial:
		return "SERIAL"
	case TypeBigSerial:
		return "BIGSERIAL"
	case TypeInteger:
		return "INTEGER"
	case TypeBigInt:
		return "BIGINT"
	case TypeString:
		return fmt.Sprintf("VARCHAR(%d)", c.Length)
	case TypeBoolean:
		return "BOOLEAN"
	case TypeFloat:
		return "DOUBLE PRECISION"
	case TypeTimestamp:
		return "TIMESTAMPTZ"
	case TypeUUID:
		return "UUID"
	case TypeJSON:
		return "JSONB"
	case TypeBytes:
		return "BYTEA"
	default:
		return "TEXT"
	}
}

func (d postgres) ColumnSQL(t Table, c Column) (string, error) {
	parts := []string{d.QuoteIdent(c.Name), d.columnType(c)}
	switch {
	case inlinePrimaryKey(t, c):
		parts = append(parts, "PRIMARY KEY")
	case !c.Nullable && !c.PrimaryKey:
		parts = append(parts, "NOT NULL")
	}
	return strings.Join(parts, " "), nil
}

func (d postgres) CreateTableSQL(t Table) (string, error) { return createTable(d, t) }

func (d postgres) AddColumnSQL(t Table, c Column) (string, error) {
	def, err := d.ColumnSQL(t, c)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(t.Name), def), nil
}

func (d postgres) DropTableSQL(name string) string {
	return "DROP TABLE " + d.QuoteIdent(name)
}

// --- sqlite ---

// sqlite maps bounded strings to TEXT with a length CHECK, and serial keys to
// INTEGER PRIMARY KEY AUTOINCREMENT so sequences live in sqlite_sequence and
// travel with the database file.
type sqlite struct{}

func (sqlite) Name() string                   { return "sqlite" }
func (sqlite) QuoteIdent(name string) string  { return quoteDouble(name) }
func (sqlite) SupportsTransactionalDDL() bool { return true }

func (sqlite) columnType(c Column) string {
	switch c.Type {
	case TypeSerial, TypeBigSerial, TypeInteger, TypeBigInt, TypeBoolean:
		return "INTEGER"
	case TypeFloat:
		return "REAL"
	case TypeBytes:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func (d sqlite) ColumnSQL(t Table, c Column) (string, error) {
	if c.Type.IsSerial() && !inlinePrimaryKey(t, c) {
		return "", errors.Schema(fmt.Sprintf("column %s.%s: sqlite supports serial only as the sole primary key", t.Name, c.Name), nil)
	}
	parts := []string{d.QuoteIdent(c.Name), d.columnType(c)}
	switch {
	case inlinePrimaryKey(t, c) && c.Type.IsSerial():
		parts = append(parts, "PRIMARY KEY AUTOINCREMENT")
	case inlinePrimaryKey(t, c):
		parts = append(parts, "PRIMARY KEY")
	case !c.Nullable && !c.PrimaryKey:
		parts = append(parts, "NOT NULL")
	}
	if c.Type == TypeString {
		parts = append(parts, fmt.Sprintf("CHECK (length(%s) <= %d)", d.QuoteIdent(c.Name), c.Length))
	}
	return strings.Join(parts, " "), nil
}

func (d sqlite) CreateTableSQL(t Table) (string, error) { return createTable(d, t) }

func (d sqlite) AddColumnSQL(t Table, c Column) (string, error) {
	if c.PrimaryKey {
		return "", errors.Schema(fmt.Sprintf("column %s.%s: sqlite cannot add a primary key column", t.Name, c.Name), nil)
	}
	def, err := d.ColumnSQL(t, c)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.QuoteIdent(t.Name), def), nil
}

func (d sqlite) DropTableSQL(name string) string {
	return "DROP TABLE " + d.QuoteIdent(name)
}
