package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/loft"
	"github.com/aretw0/loft/internal/metrics"
	"github.com/aretw0/loft/internal/server"
	storesource "github.com/aretw0/loft/pkg/adapters/lifecycle"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API with live views over server-sent events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rec := metrics.New(true)
		app, err := openApp(ctx, cmd, cfg, loft.WithRecorder(rec), loft.WithWatch(cfg.Storage.Watch))
		if err != nil {
			return err
		}
		defer app.Close()

		logger := app.Logger()
		srv := server.New(app, cfg.Server.Addr,
			server.WithLogger(logger),
			server.WithMetricsHandler(rec.Handler()),
		)

		g, ctx := errgroup.WithContext(ctx)
		changes := storesource.NewSource(app.Service, "**")
		if err := changes.Start(ctx); err != nil {
			return err
		}
		g.Go(func() error {
			return srv.Run(ctx)
		})
		g.Go(func() error {
			for e := range changes.Events() {
				logger.Info("change", "event", e.String())
			}
			return nil
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
