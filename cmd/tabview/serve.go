package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/tabview/internal/watch"
	"github.com/JonMunkholm/tabview/internal/web"
)

var watchFlag bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web viewer and JSON API",
	Long: `Serve the dashboard, the table pages and the /api endpoints.

With --watch (or WATCH_ENABLED=true) files dropped into <WATCH_DIR>/main
or <WATCH_DIR>/history are imported as well.

Examples:
  tabview serve
  tabview serve --config tabview.yaml --watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&watchFlag, "watch", false, "import files dropped into the watch folder")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if watchFlag {
		cfg.Watch.Enabled = true
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"watch_enabled", cfg.Watch.Enabled,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, st, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, s := range svc.Status() {
		slog.Info("dataset loaded", "kind", s.Kind, "exists", s.Exists, "rows", s.Rows)
	}

	server := web.NewServer(svc, cfg)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	if cfg.Watch.Enabled {
		w, err := watch.New(cfg.Watch.Dir, cfg.Watch.Debounce, svc)
		if err != nil {
			server.Close()
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := svc.LimiterStatus().Active; active > 0 {
			slog.Info("waiting for uploads to complete", "active", active)
			if err := svc.WaitForUploads(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			} else {
				slog.Info("all uploads completed")
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
