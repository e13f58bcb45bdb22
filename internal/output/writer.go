// Package output mirrors a published snapshot to a directory tree.
package output

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/tessera/internal/content"
	"github.com/conneroisu/tessera/internal/logging"
	"github.com/conneroisu/tessera/internal/store"
)

// Writer writes every page of a snapshot below Root. Each Write builds the
// complete tree in a staging directory next to Root and then replaces Root,
// so the directory only ever holds one generation.
type Writer struct {
	Root   string
	logger logging.Logger
}

// NewWriter creates a writer targeting root.
func NewWriter(root string, logger logging.Logger) *Writer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Writer{Root: root, logger: logger.WithComponent("output")}
}

// FilePath maps a route to its slash-separated file path relative to the
// output root. Routes ending in an output kind's extension are written
// as-is; every other route becomes a directory holding index.html.
func FilePath(route string) (string, error) {
	for _, seg := range strings.Split(route, "/") {
		if seg == ".." {
			return "", fmt.Errorf("route %q escapes the output root", route)
		}
	}
	clean := path.Clean("/" + route)
	rel := strings.TrimPrefix(clean, "/")
	switch {
	case rel == "":
		return "index.html", nil
	case content.HasSuffix(clean) && !strings.HasSuffix(route, "/"):
		return rel, nil
	default:
		return rel + "/index.html", nil
	}
}

// Write replaces the tree under Root with the pages of snap.
func (w *Writer) Write(ctx context.Context, snap *store.Snapshot) error {
	op := logging.StartOperation(w.logger, "write_output")

	parent := filepath.Dir(filepath.Clean(w.Root))
	if err := os.MkdirAll(parent, 0755); err != nil {
		op.EndWithError(ctx, err)
		return fmt.Errorf("creating output parent: %w", err)
	}

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(w.Root)+"-staging-*")
	if err != nil {
		op.EndWithError(ctx, err)
		return fmt.Errorf("creating staging directory: %w", err)
	}

	written := 0
	owners := make(map[string]string)
	for _, page := range snap.Pages() {
		if err := ctx.Err(); err != nil {
			_ = os.RemoveAll(staging)
			return err
		}
		rel, err := FilePath(page.Route)
		if err != nil {
			w.logger.Warn(ctx, err, "Skipping page", "route", page.Route)
			continue
		}
		// "/" and "/index.html" both land on index.html. Routes are
		// visited in order, so the first one keeps the file.
		if owner, taken := owners[rel]; taken {
			w.logger.Warn(ctx, fmt.Errorf("file %s already written for route %s", rel, owner),
				"Skipping page with colliding output path", "route", page.Route, "file", rel)
			continue
		}
		owners[rel] = page.Route
		if err := writeFile(filepath.Join(staging, filepath.FromSlash(rel)), page.Output()); err != nil {
			w.logger.Warn(ctx, err, "Failed to write page", "route", page.Route, "file", rel)
			continue
		}
		written++
	}

	if err := replaceDir(staging, w.Root); err != nil {
		_ = os.RemoveAll(staging)
		op.EndWithError(ctx, err)
		return err
	}

	op.End(ctx, "generation", snap.Generation, "files", written, "root", w.Root)
	return nil
}

func writeFile(path, data string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(data), 0644)
}

// replaceDir moves staging into place at root, removing the previous tree.
func replaceDir(staging, root string) error {
	old := staging + ".old"
	if err := os.Rename(root, old); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("moving previous output aside: %w", err)
	}
	if err := os.Rename(staging, root); err != nil {
		// put the previous tree back so the output never disappears
		_ = os.Rename(old, root)
		return fmt.Errorf("installing output: %w", err)
	}
	if err := os.RemoveAll(old); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing previous output: %w", err)
	}
	return nil
}
