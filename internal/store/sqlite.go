package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/donaldgifford/listing-aggregator/internal/metrics"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

// SQLiteStore implements Store on a local SQLite file through the pure-Go
// modernc driver. It serializes access through a single connection, which
// also keeps an in-memory database alive for the lifetime of the store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the SQLite database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is empty", domain.ErrConfig)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return runSQLiteMigrations(ctx, s.db)
}

// ReplaceListings deletes every row and inserts listings in ranking order
// inside one transaction. SQLite rolls back only the failing statement, so
// a rejected row does not affect the others.
func (s *SQLiteStore) ReplaceListings(ctx context.Context, listings []domain.Listing) (*SaveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, queryDeleteListings); err != nil {
		return nil, fmt.Errorf("deleting listings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, querySQLiteInsertListing)
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	res := &SaveResult{}
	for i := range listings {
		l := &listings[i]
		ranking := i + 1

		if _, err := stmt.ExecContext(ctx, ranking, l.Title, l.Price, l.Rating, l.Link, l.Source); err != nil {
			res.Failed = append(res.Failed, RowError{Ranking: ranking, Title: l.Title, Err: err})
			metrics.RowFailuresTotal.Inc()
			continue
		}
		res.Saved++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing listings: %w", err)
	}

	metrics.RowsSavedTotal.Add(float64(res.Saved))
	return res, nil
}

// ListListings queries listings with optional filters, returning results and total count.
func (s *SQLiteStore) ListListings(
	ctx context.Context,
	opts *ListingQuery,
) ([]domain.Listing, int, error) {
	if opts == nil {
		opts = &ListingQuery{}
	}
	dataSQL, countSQL, args := opts.build(question)

	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting listings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying listings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	listings := []domain.Listing{}
	for rows.Next() {
		var l domain.Listing
		if err := scanListingRow(rows, &l); err != nil {
			return nil, 0, fmt.Errorf("scanning listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating listings: %w", err)
	}

	return listings, total, nil
}
