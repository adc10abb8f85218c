package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/temcen/gamepulse/internal/app"
	"github.com/temcen/gamepulse/internal/catalog"
	"github.com/temcen/gamepulse/internal/config"
	"github.com/temcen/gamepulse/internal/services"
)

var fetchOutput string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the catalog and write a redistributed snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		logger := app.SetupLogger(cfg)

		svc := services.NewCatalogService(services.CatalogServiceOptions{
			Source:       catalog.NewRAWGClient(cfg.Catalog, logger),
			Aggregator:   services.NewStatsAggregator(cfg.Stats.TopGenres, cfg.Stats.TopPlatforms),
			Distribution: cfg.Distribution,
			TargetCount:  cfg.Catalog.TargetCount,
			Logger:       logger,
		})

		snapshot, err := svc.Refresh(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if fetchOutput != "" && fetchOutput != "-" {
			f, err := os.Create(fetchOutput)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", fetchOutput, err)
			}
			defer f.Close()
			out = f
		}

		if err := writeJSON(out, snapshot); err != nil {
			return err
		}
		if out != cmd.OutOrStdout() {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d games to %s\n", len(snapshot.Games), fetchOutput)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOutput, "output", "", "Output file (default stdout)")
	rootCmd.AddCommand(fetchCmd)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
