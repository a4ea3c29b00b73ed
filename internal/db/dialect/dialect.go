// Package dialect provides SQL fragment helpers for SQLite/PostgreSQL portability.
package dialect

const (
	SQLite3 = "sqlite3"
	PGX     = "pgx"
)

// IsPostgres returns true if the driver is PostgreSQL (pgx).
func IsPostgres(driver string) bool {
	return driver == PGX
}

// TimestampType returns the column type used for timestamps.
func TimestampType(driver string) string {
	if IsPostgres(driver) {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}

// UpsertIgnore returns the suffix that turns an INSERT into an idempotent
// insert keyed on the primary key. Retried creates must not fail on rows
// that an earlier, timed-out attempt already wrote.
//
//	SQLite:   prefix "INSERT OR IGNORE"
//	Postgres: suffix "ON CONFLICT (id) DO NOTHING"
func UpsertIgnore(driver string) (prefix, suffix string) {
	if IsPostgres(driver) {
		return "INSERT", " ON CONFLICT (id) DO NOTHING"
	}
	return "INSERT OR IGNORE", ""
}
