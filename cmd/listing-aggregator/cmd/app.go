package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/donaldgifford/listing-aggregator/internal/config"
	"github.com/donaldgifford/listing-aggregator/internal/notify"
	"github.com/donaldgifford/listing-aggregator/internal/pipeline"
	"github.com/donaldgifford/listing-aggregator/internal/source"
	"github.com/donaldgifford/listing-aggregator/internal/store"
	"github.com/donaldgifford/listing-aggregator/pkg/sorter"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

// openStore connects to the configured database and applies pending
// migrations.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	st, err := store.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	log.Debug("running migrations", "driver", cfg.Database.Driver)
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return st, nil
}

// newPipeline wires the configured sources, sorter, store and CSV export.
// st may be nil when nothing is persisted.
func newPipeline(
	cfg *config.Config,
	sh *source.Shared,
	st store.Store,
	log *slog.Logger,
) (*pipeline.Pipeline, error) {
	src, err := source.Build(cfg, sh, log)
	if err != nil {
		return nil, err
	}

	policy, err := domain.ParseNullPolicy(cfg.Sorting.NullPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithSorter(sorter.New(
			sorter.WithNullPolicy(policy),
			sorter.WithLogger(log),
		)),
	}
	if st != nil {
		opts = append(opts, pipeline.WithStore(st))
	}
	if cfg.Export.CSVPath != "" {
		opts = append(opts, pipeline.WithExporter(store.NewCSVExporter(cfg.Export.CSVPath)))
	}

	return pipeline.New(src, opts...), nil
}

// defaultMode is the configured fallback sort mode.
func defaultMode(cfg *config.Config) domain.SortMode {
	mode, err := domain.ParseSortMode(cfg.Sorting.DefaultMode)
	if err != nil {
		return domain.DefaultSortMode
	}
	return mode
}

// newNotifier returns the Discord notifier when enabled, otherwise a
// notifier that only logs.
func newNotifier(cfg *config.Config, log *slog.Logger) notify.Notifier {
	if d := cfg.Notifications.Discord; d.Enabled {
		log.Info("discord notifications enabled")
		return notify.NewDiscordNotifier(d.WebhookURL)
	}
	return notify.NewNoOpNotifier(log)
}
