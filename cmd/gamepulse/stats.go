package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/temcen/gamepulse/internal/app"
	"github.com/temcen/gamepulse/internal/config"
	"github.com/temcen/gamepulse/internal/services"
	"github.com/temcen/gamepulse/pkg/models"
)

var (
	statsInput        string
	statsRedistribute bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate statistics from a JSON game dump",
	Long: `Read a JSON array of games (or a catalog page with a "results" field) and print
genre, platform and rating bucket statistics as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		logger := app.SetupLogger(cfg)

		games, err := readGames(statsInput)
		if err != nil {
			return err
		}

		if statsRedistribute {
			games, err = services.NewRatingRedistributor(nil, logger).Redistribute(games, cfg.Distribution)
			if err != nil {
				return err
			}
		}

		result := services.NewStatsAggregator(cfg.Stats.TopGenres, cfg.Stats.TopPlatforms).Aggregate(games)
		return writeJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsInput, "input", "", "Input JSON file")
	statsCmd.Flags().BoolVar(&statsRedistribute, "redistribute", false, "Apply the configured rating distribution first")
	statsCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(statsCmd)
}

// readGames accepts either a bare array or a catalog page.
func readGames(path string) ([]models.Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var games []models.Game
	if err := json.Unmarshal(data, &games); err == nil {
		return games, nil
	}

	var page models.CatalogPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return page.Results, nil
}
