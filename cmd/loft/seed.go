package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/loft/pkg/tracker"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the tracker tables on first run",
	Long: `Write the bundled subjects and labs (or the ones in --file) to the store.
Nothing is written when the subjects table already holds records.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Seed.Auto = false

		seed := tracker.DefaultSeed()
		if seedFile != "" {
			if seed, err = tracker.LoadSeedFile(seedFile); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		seeded, err := app.Tracker.Seed(ctx, seed)
		if err != nil {
			return fmt.Errorf("failed to seed: %w", err)
		}
		if !seeded {
			fmt.Fprintln(cmd.OutOrStdout(), "tracker already populated, nothing written")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d subjects\n", len(seed.Subjects))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML seed file (default: bundled seed)")
	rootCmd.AddCommand(seedCmd)
}
