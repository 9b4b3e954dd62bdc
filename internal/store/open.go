package store

import (
	"context"
	"fmt"

	"github.com/donaldgifford/listing-aggregator/internal/config"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// Open connects to the database described by cfg.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgresStore(ctx, cfg.DSN(), WithPoolSize(cfg.PoolSize))
	case config.DriverSQLite:
		return NewSQLiteStore(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", domain.ErrConfig, cfg.Driver)
	}
}
