package sqlstore

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

// Dialect captures the differences between the supported backends:
// placeholder style, schema introspection queries and driver error codes.
type Dialect interface {
	// Name returns the database/sql driver name the dialect belongs to.
	Name() string
	// Rebind converts ? placeholders into the backend's native style.
	Rebind(query string) string
	// ListTablesQuery returns the query listing all base tables.
	ListTablesQuery() string
	// TableExistsQuery returns the one-parameter table existence probe.
	TableExistsQuery() string
	// IsMissingTable reports whether err means the referenced table does
	// not exist.
	IsMissingTable(err error) bool
}

// DialectFor returns the Dialect for a database/sql driver name.
func DialectFor(driver string) Dialect {
	if driver == "mysql" {
		return mysqlDialect{}
	}
	return postgresDialect{}
}

// ---------------------------------------------------------------------------
// PostgreSQL
// ---------------------------------------------------------------------------

type postgresDialect struct{}

func (postgresDialect) Name() string { return "pgx" }

// Rebind rewrites ? placeholders into $1..$n.
func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func (postgresDialect) ListTablesQuery() string  { return pgListTables }
func (postgresDialect) TableExistsQuery() string { return pgTableExists }

// IsMissingTable matches undefined_table (42P01).
func (postgresDialect) IsMissingTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// ---------------------------------------------------------------------------
// MySQL
// ---------------------------------------------------------------------------

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

// Rebind is a no-op: MySQL uses ? natively.
func (mysqlDialect) Rebind(query string) string { return query }

func (mysqlDialect) ListTablesQuery() string  { return myListTables }
func (mysqlDialect) TableExistsQuery() string { return myTableExists }

// IsMissingTable matches ER_NO_SUCH_TABLE (1146).
func (mysqlDialect) IsMissingTable(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1146
}
