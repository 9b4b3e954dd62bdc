package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/donaldgifford/listing-aggregator/internal/metrics"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

const defaultPoolSize = 10

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PostgresOption configures NewPostgresStore.
type PostgresOption func(*pgxpool.Config)

// WithPoolSize caps the number of pooled connections. Zero keeps the default.
func WithPoolSize(n int) PostgresOption {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = int32(n) //nolint:gosec // pool sizes are small
		}
	}
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string, opts ...PostgresOption) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing connection string: %w", domain.ErrConfig, err)
	}

	cfg.MaxConns = defaultPoolSize
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// ReplaceListings truncates the table and inserts listings in ranking
// order inside one transaction. Each insert runs under its own savepoint
// so a rejected row rolls back alone.
func (s *PostgresStore) ReplaceListings(ctx context.Context, listings []domain.Listing) (*SaveResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, queryTruncateListings); err != nil {
		return nil, fmt.Errorf("truncating listings: %w", err)
	}

	res := &SaveResult{}
	for i := range listings {
		l := &listings[i]
		ranking := i + 1

		if err := insertWithSavepoint(ctx, tx, ranking, l); err != nil {
			res.Failed = append(res.Failed, RowError{Ranking: ranking, Title: l.Title, Err: err})
			metrics.RowFailuresTotal.Inc()
			continue
		}
		res.Saved++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing listings: %w", err)
	}

	metrics.RowsSavedTotal.Add(float64(res.Saved))
	return res, nil
}

func insertWithSavepoint(ctx context.Context, tx pgx.Tx, ranking int, l *domain.Listing) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("creating savepoint: %w", err)
	}

	args := pgx.NamedArgs{
		"ranking": ranking,
		"title":   l.Title,
		"price":   l.Price,
		"rating":  l.Rating,
		"link":    l.Link,
		"source":  l.Source,
	}
	if _, err := sp.Exec(ctx, queryInsertListing, args); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}

	return sp.Commit(ctx)
}

// ListListings queries listings with optional filters, returning results and total count.
func (s *PostgresStore) ListListings(
	ctx context.Context,
	opts *ListingQuery,
) ([]domain.Listing, int, error) {
	if opts == nil {
		opts = &ListingQuery{}
	}
	dataSQL, countSQL, args := opts.ToSQL()

	var total int
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting listings: %w", err)
	}

	rows, err := s.pool.Query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying listings: %w", err)
	}
	defer rows.Close()

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

// rowScanner is satisfied by pgx.Rows, *sql.Rows and *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanListingRow(r rowScanner, l *domain.Listing) error {
	return r.Scan(&l.Ranking, &l.Title, &l.Price, &l.Rating, &l.Link, &l.Source)
}
