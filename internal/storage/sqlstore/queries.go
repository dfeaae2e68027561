// Package sqlstore implements the table store on PostgreSQL or MySQL through
// database/sql. Statements are written with ? placeholders and rebound per
// dialect at execution time. Identifiers cannot travel as placeholders, so
// table and column names are validated before they are interpolated; every
// value is a bound parameter.
package sqlstore

// Fixed queries, per backend. Everything else is assembled at call time from
// the request's table name and conditions.
const (
	// pgListTables returns every base table in the active schema.
	pgListTables = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema()
  AND table_type = 'BASE TABLE'
ORDER BY table_name`

	// pgTableExists probes one table name in the active schema.
	pgTableExists = `
SELECT EXISTS (
    SELECT 1
    FROM information_schema.tables
    WHERE table_schema = current_schema()
      AND table_name = ?
)`

	// myListTables returns every base table in the current database.
	myListTables = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = DATABASE()
  AND table_type = 'BASE TABLE'
ORDER BY table_name`

	// myTableExists probes one table name in the current database.
	myTableExists = `
SELECT EXISTS (
    SELECT 1
    FROM information_schema.tables
    WHERE table_schema = DATABASE()
      AND table_name = ?
)`
)
