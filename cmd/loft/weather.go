package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var weatherCmd = &cobra.Command{
	Use:   "weather",
	Short: "Query OpenWeatherMap",
}

var weatherCurrentCmd = &cobra.Command{
	Use:   "current <city>",
	Short: "Show the current weather in a city",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		cur, err := app.Weather.Current(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, cur)
		}
		fmt.Fprintf(out, "%s: %.1f° (feels like %.1f°), humidity %d%%\n",
			cur.City, cur.Main.Temp, cur.Main.FeelsLike, cur.Main.Humidity)
		return nil
	},
}

var weatherForecastCmd = &cobra.Command{
	Use:   "forecast <city>",
	Short: "Show the forecast for a city",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := openApp(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		fc, err := app.Weather.Forecast(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, fc)
		}
		fmt.Fprintf(out, "%s, %s\n", fc.City.Name, fc.City.Country)
		for _, e := range fc.Entries {
			fmt.Fprintf(out, "  %s\t%.1f°\n", e.Time, e.Main.Temp)
		}
		return nil
	},
}

func init() {
	weatherCmd.AddCommand(weatherCurrentCmd, weatherForecastCmd)
	rootCmd.AddCommand(weatherCmd)
}
