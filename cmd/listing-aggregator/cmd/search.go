package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/donaldgifford/listing-aggregator/internal/pipeline"
	"github.com/donaldgifford/listing-aggregator/internal/source"
	"github.com/donaldgifford/listing-aggregator/internal/store"
)

type searchFlags struct {
	limit   int
	sort    string
	persist bool
}

func searchCommand() *cobra.Command {
	var f searchFlags

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the configured sources and print ranked listings",
		Long: "Fetches up to --limit listings per source, sorts them and replaces the\n" +
			"stored listings table with the ranked result. Without a query argument\n" +
			"the search term, limit and sort order are asked for interactively.",
		Example: `  # Ask for the query, limit and sort order
  listing-aggregator search

  # Cheapest first, from eBay only
  listing-aggregator search "wireless mouse" --sources ebay

  # Best rated first, print as JSON, do not touch the database
  listing-aggregator search "usb c hub" --sort rating_desc --persist=false --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args, f)
		},
	}

	cmd.Flags().IntVar(&f.limit, "limit", 0, "listings per source (default 10)")
	cmd.Flags().StringVar(&f.sort, "sort", "",
		"price_asc, price_desc, rating_asc, rating_desc or 1-4 (default from sorting.default_mode)")
	cmd.Flags().BoolVar(&f.persist, "persist", true, "replace the stored listings with the result")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string, f searchFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := pipeline.Request{Persist: f.persist}
	if len(args) == 0 {
		p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr(), log)
		prompted, err := p.Request(defaultMode(cfg))
		if err != nil {
			return err
		}
		req.Query, req.Limit, req.Mode = prompted.Query, prompted.Limit, prompted.Mode
	} else {
		req.Query = args[0]
		req.Limit = f.limit
		req.Mode = defaultMode(cfg)
		if f.sort != "" {
			req.Mode = pipeline.ResolveMode(f.sort, log)
		}
	}

	if err := source.CheckCredentials(cfg); err != nil {
		return err
	}

	var st store.Store
	if req.Persist {
		st, err = openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	p, err := newPipeline(cfg, source.NewShared(&cfg.Ebay), st, log)
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, req)
	if err != nil {
		return err
	}

	return printResult(cmd, res)
}

func printResult(cmd *cobra.Command, res *pipeline.Result) error {
	out := cmd.OutOrStdout()
	format := viper.GetString("output")

	if err := writeListings(out, format, res.Listings, res); err != nil {
		return err
	}
	if format == outputJSON || format == outputCSV {
		return nil
	}

	errOut := cmd.ErrOrStderr()
	for i := range res.Failed {
		fmt.Fprintf(errOut, "Insert failed for listing #%d %q: %v\n",
			res.Failed[i].Ranking, res.Failed[i].Title, res.Failed[i].Err)
	}
	if res.Persisted {
		fmt.Fprintf(errOut, "Saved %d of %d listings.\n", res.Saved, len(res.Listings))
	}
	return nil
}
