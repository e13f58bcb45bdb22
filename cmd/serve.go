package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/tessera/internal/config"
	"github.com/conneroisu/tessera/internal/livereload"
	"github.com/conneroisu/tessera/internal/logging"
	"github.com/conneroisu/tessera/internal/metrics"
	"github.com/conneroisu/tessera/internal/rebuild"
	"github.com/conneroisu/tessera/internal/server"
	"github.com/conneroisu/tessera/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the site and rebuild it when sources change",
	Long: `Build the site once, then serve it from memory while watching the content,
template and static directories. Every change triggers a full rebuild that
keeps the etags of unchanged pages.

Examples:
  tessera serve                 # Serve on 127.0.0.1:8765
  tessera serve --dev           # Live reload, no HTTP caching
  tessera serve -p 3000 --write # Also mirror every rebuild to output.path`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8765, "Port to serve on")
	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().Bool("dev", false, "Development mode: live reload and caching disabled")
	serveCmd.Flags().Bool("write", false, "Write every rebuild to the output directory")
	AddFlagValidation(serveCmd, "port", ValidatePort)

	bindFlags(serveCmd, map[string]string{
		"port":  "server.port",
		"host":  "server.host",
		"dev":   "server.dev",
		"write": "output.enabled",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logValidationWarnings(cmd.Context(), cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := newSite(cfg, logger)

	var m *metrics.Metrics
	if cfg.Server.Metrics {
		m = metrics.New()
		s.coordinator.OnResult(func(_ context.Context, res rebuild.Result) { m.ObserveRebuild(res) })
		s.coordinator.OnFailure(func(context.Context, error) { m.RebuildFailed() })
	}

	if cfg.Output.Enabled {
		s.writeOutputOnRebuild()
	}

	var hub *livereload.Hub
	if cfg.Server.Dev {
		hub = livereload.NewHub(logger)
		s.coordinator.OnResult(func(ctx context.Context, res rebuild.Result) {
			if res.Changed() {
				changed := append(append(append([]string(nil), res.Added...), res.Updated...), res.Removed...)
				hub.Broadcast(ctx, livereload.Reload(res.Generation, changed))
			}
		})
	}

	// The first build must succeed; later failures keep the previous snapshot.
	res, err := s.build(ctx)
	if err != nil {
		return err
	}
	logger.Info(ctx, "Initial build complete",
		"pages", res.Snapshot.Len(),
		"errors", len(res.Errors),
		"duration_ms", res.Duration.Milliseconds(),
	)

	srv := server.New(s.store, server.Options{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		StaticDir: cfg.Static.Path,
		Handler: server.HandlerOptions{
			Redirects: redirects(cfg),
			Caching:   cfg.Cache.Enabled && !cfg.Server.Dev,
			MaxAge:    cfg.Cache.MaxAge,
		},
		Metrics:    m,
		LiveReload: hub,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		fw, err := startWatcher(gctx, cfg, s.coordinator, logger)
		if err != nil {
			return err
		}
		defer fw.Stop()

		g.Go(func() error {
			if err := s.coordinator.Run(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		return srv.Start(gctx)
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d pages at http://%s\n", res.Snapshot.Len(), srv.Addr())

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info(context.Background(), "Shut down cleanly")
	return nil
}

// startWatcher watches every source root and requests a rebuild for each
// debounced batch of changes.
func startWatcher(ctx context.Context, cfg *config.Config, coordinator *rebuild.Coordinator, logger logging.Logger) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, err
	}

	fw.AddFilter(watcher.IgnoreFilter)
	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		logger.Debug(ctx, "Sources changed", "events", len(events))
		coordinator.Request()
		return nil
	})

	for _, root := range cfg.WatchRoots() {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			logger.Warn(ctx, err, "Not watching missing directory", "path", root)
			continue
		}
		if err := fw.AddRecursive(root); err != nil {
			_ = fw.Stop()
			return nil, err
		}
	}

	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	logger.Info(ctx, "Watching for changes", "directories", len(fw.WatchList()))
	return fw, nil
}

func redirects(cfg *config.Config) []server.Redirect {
	out := make([]server.Redirect, 0, len(cfg.Redirects))
	for _, r := range cfg.Redirects {
		out = append(out, server.Redirect{From: r.From, To: r.To, Permanent: r.Permanent()})
	}
	return out
}

func logValidationWarnings(ctx context.Context, cfg *config.Config, logger logging.Logger) {
	if ctx == nil {
		ctx = context.Background()
	}
	result := config.ValidateConfigWithDetails(cfg)
	for _, w := range result.Warnings {
		logger.Warn(ctx, &w, "Configuration warning", "field", w.Field)
	}
}
