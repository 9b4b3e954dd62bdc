package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/donaldgifford/listing-aggregator/internal/api/handlers"
	mw "github.com/donaldgifford/listing-aggregator/internal/api/middleware"
	"github.com/donaldgifford/listing-aggregator/internal/config"
	"github.com/donaldgifford/listing-aggregator/internal/pipeline"
	"github.com/donaldgifford/listing-aggregator/internal/source"
	"github.com/donaldgifford/listing-aggregator/internal/store"
	"github.com/donaldgifford/listing-aggregator/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cobra.Command {
	var noStore bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server, token proxy and scheduler",
		Long: "Serves the eBay token proxy, the search and listings API, health probes\n" +
			"and Prometheus metrics. When schedule.enabled is set, the saved search is\n" +
			"re-run every schedule.interval and replaces the stored listings.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, noStore)
		},
	}
	cmd.Flags().BoolVar(&noStore, "no-store", false, "run without a database; persist requests are ignored")

	return cmd
}

func runServe(cmd *cobra.Command, noStore bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if !noStore {
		st, err = openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	sh := source.NewShared(&cfg.Ebay)
	p, err := newPipeline(cfg, sh, st, log)
	if err != nil {
		return err
	}

	var sched *pipeline.Scheduler
	if cfg.Schedule.Enabled {
		sched, err = newScheduler(cfg, p, log)
		if err != nil {
			return err
		}
	}

	e := newServer(cfg, sh, st, p, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Server.Addr(), "sources", cfg.Sources)
		if err := e.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if sched != nil {
		sched.Start()
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		if sched != nil {
			<-sched.Stop().Done()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func newScheduler(cfg *config.Config, p *pipeline.Pipeline, log *slog.Logger) (*pipeline.Scheduler, error) {
	schedLog := logger.Component(log, "scheduler")
	req := pipeline.Request{
		Query:   cfg.Schedule.Query,
		Limit:   cfg.Schedule.Limit,
		Mode:    pipeline.ResolveMode(cfg.Schedule.Sort, schedLog),
		Persist: true,
	}
	return pipeline.NewScheduler(p, req, cfg.Schedule.Interval, schedLog,
		pipeline.WithNotifier(newNotifier(cfg, schedLog), cfg.Notifications.Discord.TopN),
	)
}

// newServer builds the Echo instance with every route mounted. st may be nil.
func newServer(
	cfg *config.Config,
	sh *source.Shared,
	st store.Store,
	p *pipeline.Pipeline,
	log *slog.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	httpLog := logger.Component(log, "http")
	e.Use(mw.RequestLog(httpLog), mw.Recovery(httpLog), mw.Metrics())

	health := handlers.NewHealthHandler(st)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	handlers.RegisterTokenRoutes(e, handlers.NewTokenHandler(sh.Tokens, logger.Component(log, "token-proxy")))

	api := humaecho.New(e, huma.DefaultConfig("listing-aggregator API", Version))
	handlers.RegisterSearchRoutes(api, handlers.NewSearchHandler(p, log))
	handlers.RegisterQuotaRoutes(api, handlers.NewQuotaHandler(sh.Limiter))
	if st != nil {
		handlers.RegisterListingRoutes(api, handlers.NewListingsHandler(st))
	}

	return e
}
