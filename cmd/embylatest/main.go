package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hausmedia/embylatest/internal/config"
	"github.com/hausmedia/embylatest/internal/emby"
	"github.com/hausmedia/embylatest/internal/fetch"
	"github.com/hausmedia/embylatest/internal/imagecache"
	"github.com/hausmedia/embylatest/internal/log"
)

// Version is set at build time via -ldflags
var Version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "embylatest",
	Short:         "Query recently added Emby items and mirror their artwork",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the user's library view categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := buildClients()
		if err != nil {
			return err
		}

		categories, err := client.GetViewCategories(cmd.Context())
		if err != nil {
			return err
		}

		for _, c := range categories {
			fmt.Printf("%s\t%s\n", c.ID, c.Name)
		}
		return nil
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest <category-id>",
	Short: "List the most recently added items of a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := buildClients()
		if err != nil {
			return err
		}

		items, err := client.GetLatestItems(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		for _, item := range items {
			name := item.Name
			if item.SeriesName != "" {
				name = item.SeriesName + " - " + name
			}
			fmt.Printf("%s\t%d\t%.1f\t%s\n", item.ID, item.ProductionYear, item.CommunityRating, name)
		}
		return nil
	},
}

var imageURLCmd = &cobra.Command{
	Use:   "image-url <item-id> [image-type]",
	Short: "Resolve the displayable artwork URL for an item",
	Long: "Resolve the displayable artwork URL for an item. With a cache\n" +
		"directory configured this returns the local path and starts the\n" +
		"background download when the file is not cached yet.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := buildClients()
		if err != nil {
			return err
		}

		imageType := "Primary"
		if len(args) > 1 {
			imageType = args[1]
		}

		fmt.Println(store.ResolveImageURL(args[0], imageType))
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete cached artwork older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if cfg.Cache.Directory == "" {
			return fmt.Errorf("no cache.directory configured, nothing to sweep")
		}

		// Constructing the store performs the retention sweep.
		logger := log.StderrLogger(cfg.Logging.Level)
		if _, err := imagecache.New(*cfg, fetch.New(logger), logger); err != nil {
			return err
		}

		fmt.Printf("swept %s (retention %d days)\n", cfg.Cache.Directory, cfg.Cache.RetentionDays)
		return nil
	},
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	var logger *slog.Logger
	if verbose {
		logger = log.StderrLogger("DEBUG")
	} else if logger, err = log.SetupLogger(&cfg.Logging); err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	return cfg, logger, nil
}

func buildClients() (*emby.Client, *imagecache.Store, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	fetcher := fetch.New(logger)
	client := emby.NewClient(*cfg, fetcher, logger)

	store, err := imagecache.New(*cfg, fetcher, logger)
	if err != nil {
		return nil, nil, err
	}

	return client, store, nil
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr at debug level")
	rootCmd.AddCommand(categoriesCmd, latestCmd, imageURLCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
