package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-lookup/internal/config"
	"github.com/kjstillabower/weather-lookup/internal/controller"
	"github.com/kjstillabower/weather-lookup/internal/display"
	"github.com/kjstillabower/weather-lookup/internal/observability"
)

func newLookupCmd() *cobra.Command {
	var (
		unit   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "lookup [city]",
		Short: "Look up a city once and print the weather panel",
		Long: `Look up a city once and print the weather panel.

With a city argument this behaves like submitting the search form: the city
is remembered as the last city. Without one it behaves like opening the page
and looks up the last city, if any. Remembering only survives between runs
with a persistent storage backend (sqlite or memcached).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := observability.NewLogger()
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.shutdown(logger)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			snap := runLookup(ctx, a.events, args, display.ParseUnit(unit))
			return printSnapshot(cmd.OutOrStdout(), snap, asJSON)
		},
	}
	cmd.Flags().StringVar(&unit, "unit", string(display.Celsius), "temperature unit: celsius or fahrenheit")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// runLookup fires submit when a city is given and load otherwise.
func runLookup(ctx context.Context, events *controller.Dispatcher, args []string, unit display.Unit) controller.Snapshot {
	if len(args) == 0 {
		page := controller.NewPageState("", unit)
		events.Load(ctx, page)
		return page.Snapshot()
	}
	page := controller.NewPageState(args[0], unit)
	events.Submit(ctx, page)
	return page.Snapshot()
}

func printSnapshot(w io.Writer, snap controller.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	switch {
	case snap.Weather != nil:
		v := snap.Weather
		_, err := fmt.Fprintf(w, "%s\n%s\n%s\nHumidity: %s\nWind: %s\n",
			snap.City, v.Temperature, v.Description, v.Humidity, v.WindSpeed)
		return err
	case snap.Error != "":
		_, err := fmt.Fprintln(w, snap.Error)
		return err
	default:
		_, err := fmt.Fprintln(w, "no city to look up")
		return err
	}
}
