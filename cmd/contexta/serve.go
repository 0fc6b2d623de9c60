package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/contexta-pipeline/internal/app"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background pipeline workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), serve)
		},
	}
}

// serve runs until ctx is cancelled or the listener fails, then drains the
// HTTP server and the job queue.
func serve(ctx context.Context, a *app.App) error {
	g, gctx := errgroup.WithContext(ctx)

	a.Runner.Start(gctx, a.Config.Workers)
	defer a.Runner.Close()

	srv := a.Server()
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		a.Log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	a.Log.Info("Contexta is running", "workers", a.Config.Workers)
	return g.Wait()
}
