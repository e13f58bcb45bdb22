package cmd

import (
	"context"
	"fmt"

	"github.com/conneroisu/tessera/internal/config"
	"github.com/conneroisu/tessera/internal/content"
	"github.com/conneroisu/tessera/internal/logging"
	"github.com/conneroisu/tessera/internal/output"
	"github.com/conneroisu/tessera/internal/rebuild"
	"github.com/conneroisu/tessera/internal/renderer"
	"github.com/conneroisu/tessera/internal/store"
)

// site wires the content pipeline shared by every command.
type site struct {
	cfg         *config.Config
	logger      logging.Logger
	store       *store.Store
	coordinator *rebuild.Coordinator
}

func newSite(cfg *config.Config, logger logging.Logger) *site {
	md := renderer.NewMarkdown(cfg.Content.SyntaxTheme, logger)
	scanner := content.NewScanner(content.NewCompiler(md), renderer.NewMinifier(), cfg.ScanOptions(), logger)
	st := store.New()

	return &site{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		coordinator: rebuild.New(scanner, st, logger),
	}
}

// build runs one synchronous rebuild. It fails when the template set cannot
// be loaded.
func (s *site) build(ctx context.Context) (rebuild.Result, error) {
	res, err := s.coordinator.Rebuild(ctx)
	if err != nil {
		return res, fmt.Errorf("building site: %w", err)
	}
	return res, nil
}

// writeOutputOnRebuild mirrors every successful rebuild to disk.
func (s *site) writeOutputOnRebuild() *output.Writer {
	w := output.NewWriter(s.cfg.Output.Path, s.logger)
	s.coordinator.OnResult(func(ctx context.Context, res rebuild.Result) {
		if err := w.Write(ctx, res.Snapshot); err != nil {
			s.logger.Error(ctx, err, "Failed to write output", "root", w.Root)
		}
	})
	return w
}
