package store

// SQL query constants. All SQL lives here; the store implementations
// reference these constants.

// Listing queries.
const (
	queryTruncateListings = `TRUNCATE TABLE listings`

	queryDeleteListings = `DELETE FROM listings`

	// queryInsertListing uses pgx named arguments.
	queryInsertListing = `
		INSERT INTO listings (ranking, title, price, rating, link, source)
		VALUES (@ranking, @title, @price, @rating, @link, @source)`

	querySQLiteInsertListing = `
		INSERT INTO listings (ranking, title, price, rating, link, source)
		VALUES (?, ?, ?, ?, ?, ?)`
)

// Migration bookkeeping queries, shared by both dialects.
const (
	queryCreateSchemaMigrations = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`

	queryMigrationApplied = `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`

	queryRecordMigration = `INSERT INTO schema_migrations (version) VALUES ($1)`

	querySQLiteMigrationApplied = `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)`

	querySQLiteRecordMigration = `INSERT INTO schema_migrations (version) VALUES (?)`
)
