//go:build integration

package store_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/donaldgifford/listing-aggregator/internal/store"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

func setupPostgres(t *testing.T) *store.PostgresStore {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("lagg_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := store.NewPostgresStore(ctx, connStr, store.WithPoolSize(4))
	require.NoError(t, err)

	t.Cleanup(func() {
		s.Close()
	})

	require.NoError(t, s.Migrate(ctx))

	return s
}

func TestPostgresStore(t *testing.T) {
	s := setupPostgres(t)
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, s.Ping(ctx))
	})

	t.Run("migrate twice", func(t *testing.T) {
		require.NoError(t, s.Migrate(ctx))
	})

	t.Run("replace and list", func(t *testing.T) {
		res, err := s.ReplaceListings(ctx, sampleListings())
		require.NoError(t, err)
		assert.Equal(t, 3, res.Saved)

		got, total, err := s.ListListings(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, got, 3)
		assert.Equal(t, "Mouse B", got[0].Title)
		assert.Nil(t, got[0].Rating)
		require.NotNil(t, got[1].Rating)
		assert.InDelta(t, 99.5, *got[1].Rating, 0.0001)
	})

	t.Run("row failure keeps the rest", func(t *testing.T) {
		listings := sampleListings()
		listings[0].Title = strings.Repeat("x", 300) // exceeds VARCHAR(255)

		res, err := s.ReplaceListings(ctx, listings)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Saved)
		require.Len(t, res.Failed, 1)
		assert.Equal(t, 1, res.Failed[0].Ranking)
		assert.True(t, errors.Is(&res.Failed[0], domain.ErrPersistence))

		got, total, err := s.ListListings(ctx, &store.ListingQuery{OrderBy: "rating"})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, "Mouse A", got[0].Title)
	})

	t.Run("filters", func(t *testing.T) {
		_, err := s.ReplaceListings(ctx, sampleListings())
		require.NoError(t, err)

		got, total, err := s.ListListings(ctx, &store.ListingQuery{Source: ptr("amazon")})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "Hub", got[0].Title)
	})
}
