package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/donaldgifford/listing-aggregator/internal/store"
	domain "github.com/donaldgifford/listing-aggregator/pkg/types"
)

type listingsFlags struct {
	minPrice  float64
	maxPrice  float64
	minRating float64
	source    string
	limit     int
	offset    int
	orderBy   string
}

func listingsCommand() *cobra.Command {
	var f listingsFlags

	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Print the stored listings",
		Long:  "Prints the listings saved by the last search, with optional filters.",
		Example: `  # Everything from the last run, in ranking order
  listing-aggregator listings

  # Amazon listings under $50, best rated first
  listing-aggregator listings --source amazon --max-price 50 --order-by rating

  # Export the stored table as CSV
  listing-aggregator listings --output csv > listings.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runListings(cmd, &f)
		},
	}

	cmd.Flags().Float64Var(&f.minPrice, "min-price", 0, "minimum price")
	cmd.Flags().Float64Var(&f.maxPrice, "max-price", 0, "maximum price")
	cmd.Flags().Float64Var(&f.minRating, "min-rating", 0, "minimum rating")
	cmd.Flags().StringVar(&f.source, "source", "", "only listings from this source (ebay, amazon)")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "number of results (default 50)")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "pagination offset")
	cmd.Flags().StringVar(&f.orderBy, "order-by", "ranking", "ranking, price or rating")

	return cmd
}

// query converts the flags to a store query; zero values mean no filter.
func (f *listingsFlags) query() *store.ListingQuery {
	q := &store.ListingQuery{
		Limit:   f.limit,
		Offset:  f.offset,
		OrderBy: f.orderBy,
	}
	if f.minPrice != 0 {
		q.MinPrice = &f.minPrice
	}
	if f.maxPrice != 0 {
		q.MaxPrice = &f.maxPrice
	}
	if f.minRating != 0 {
		q.MinRating = &f.minRating
	}
	if f.source != "" {
		q.Source = &f.source
	}
	return q
}

type listingsResult struct {
	Listings []domain.Listing `json:"listings"`
	Total    int              `json:"total"`
}

func runListings(cmd *cobra.Command, f *listingsFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	st, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	listings, total, err := st.ListListings(cmd.Context(), f.query())
	if err != nil {
		return err
	}

	format := viper.GetString("output")
	if len(listings) == 0 && (format == outputTable || format == outputDetail) {
		fmt.Fprintln(cmd.OutOrStdout(), "No listings found.")
		return nil
	}
	if format == outputTable {
		fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d listings\n\n", len(listings), total)
	}

	return writeListings(cmd.OutOrStdout(), format, listings, listingsResult{Listings: listings, Total: total})
}
