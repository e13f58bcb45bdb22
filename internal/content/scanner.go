package content

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/tessera/internal/errors"
	"github.com/conneroisu/tessera/internal/logging"
	"github.com/conneroisu/tessera/internal/renderer"
)

// ScanOptions configures what a Scanner reads.
type ScanOptions struct {
	PageTypes      []PageType
	StaticIncludes []string
	TemplatesPath  string
	Globals        map[string]interface{}
	// Concurrency bounds the compile and render workers. Zero means NumCPU.
	Concurrency int
}

// Report summarizes one scan.
type Report struct {
	Compiled   int
	Skipped    int
	Dropped    int
	Collisions int
	Errors     []error
}

// Scanner builds complete page maps from the configured content roots.
type Scanner struct {
	compiler *Compiler
	minifier *renderer.Minifier
	opts     ScanOptions
	logger   logging.Logger
}

// NewScanner creates a scanner.
func NewScanner(compiler *Compiler, minifier *renderer.Minifier, opts ScanOptions, logger logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	return &Scanner{
		compiler: compiler,
		minifier: minifier,
		opts:     opts,
		logger:   logger.WithComponent("scanner"),
	}
}

type compileJob struct {
	path     string
	pageType PageType
}

// Scan compiles every eligible file and renders every page. Per-file and
// per-page failures are logged and reported, never returned; an error is
// returned only when the template set cannot be loaded or ctx is done.
func (s *Scanner) Scan(ctx context.Context) (map[string]*Page, Report, error) {
	var report Report

	tmpls, err := renderer.LoadTemplates(s.opts.TemplatesPath)
	if err != nil {
		return nil, report, fmt.Errorf("loading templates: %w", err)
	}

	collector := errors.NewCollector()

	pages, err := s.compileAll(ctx, collector, &report)
	if err != nil {
		return nil, report, err
	}

	out, err := s.renderAll(ctx, tmpls, pages, collector, &report)
	if err != nil {
		return nil, report, err
	}

	report.Errors = collector.Errors()
	s.logger.Debug(ctx, "Scanned content",
		"pages", len(out),
		"compiled", report.Compiled,
		"skipped", report.Skipped,
		"dropped", report.Dropped,
	)
	return out, report, nil
}

// compileAll is pass one: it returns the working map keyed by route.
func (s *Scanner) compileAll(ctx context.Context, collector *errors.Collector, report *Report) (map[string]*Page, error) {
	var jobs []compileJob
	for _, pt := range s.opts.PageTypes {
		jobs = append(jobs, s.collect(ctx, pt)...)
	}

	results := make([]*Page, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			page, err := s.compiler.Compile(job.path, job.pageType)
			if err != nil {
				collector.Add(err)
				s.logger.Warn(gctx, err, "Skipping file", "path", job.path, "page_type", job.pageType.Kind)
				return nil
			}
			results[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	working := make(map[string]*Page, len(results))
	for _, page := range results {
		if page == nil {
			report.Skipped++
			continue
		}
		report.Compiled++
		s.insert(ctx, working, page, report)
	}

	for _, path := range s.opts.StaticIncludes {
		page, err := s.compiler.CompileStatic(path)
		if err != nil {
			collector.Add(err)
			report.Skipped++
			s.logger.Warn(ctx, err, "Skipping static include", "path", path)
			continue
		}
		report.Compiled++
		s.insert(ctx, working, page, report)
	}

	return working, nil
}

// insert adds page to working. On a route collision the later page wins;
// files are visited in configuration then lexical order, so the winner is
// deterministic.
func (s *Scanner) insert(ctx context.Context, working map[string]*Page, page *Page, report *Report) {
	if prev, ok := working[page.Route]; ok {
		report.Collisions++
		s.logger.Warn(ctx, nil, "Duplicate route, later file wins",
			"route", page.Route,
			"overwritten", prev.Source,
			"winner", page.Source,
		)
	}
	working[page.Route] = page
}

// collect lists the files of one page type in walk order. Files whose
// extension maps to no Kind, such as images beside the markdown, are left
// out.
func (s *Scanner) collect(ctx context.Context, pt PageType) []compileJob {
	var jobs []compileJob

	err := filepath.WalkDir(pt.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == pt.Path {
				return err
			}
			s.logger.Warn(ctx, err, "Skipping unreadable entry", "path", path)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != pt.Path && Ignored(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if KindFromExt(filepath.Ext(path)) == KindUnknown {
			s.logger.Debug(ctx, "Skipping file without a page extension", "path", path)
			return nil
		}
		jobs = append(jobs, compileJob{path: path, pageType: pt})
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, errors.NewIOError(pt.Path, err), "Content root is not accessible", "page_type", pt.Kind)
	}
	return jobs
}

// Ignored reports whether a file or directory name is hidden or an editor
// artifact that must never become a page.
func Ignored(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "#") {
		return true
	}
	for _, suffix := range []string{"~", ".swp", ".swx", ".tmp", ".bak"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// renderAll is pass two: it applies each page's layout against the full
// page list. Pages whose layout fails are dropped.
func (s *Scanner) renderAll(ctx context.Context, tmpls *renderer.Templates, working map[string]*Page, collector *errors.Collector, report *Report) (map[string]*Page, error) {
	routes := make([]string, 0, len(working))
	for route := range working {
		routes = append(routes, route)
	}
	sort.Strings(routes)

	ordered := make([]*Page, len(routes))
	views := make([]renderer.PageView, len(routes))
	for i, route := range routes {
		ordered[i] = working[route]
		views[i] = ordered[i].View()
	}

	rendered := make([]*Page, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, page := range ordered {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if page.IsRendered() {
				rendered[i] = page
				return nil
			}

			out, err := tmpls.Render(page.Meta.Template, renderer.Vars{
				Page:    views[i],
				Pages:   views,
				Globals: s.opts.Globals,
			})
			if err != nil {
				renderErr := errors.NewTemplateRenderError(page.Route, page.Meta.Template, err)
				collector.Add(renderErr)
				s.logger.Error(gctx, renderErr, "Dropping page",
					"route", page.Route,
					"path", page.Source,
					"cause_chain", strings.Join(errors.Chain(renderErr), " <- "),
				)
				return nil
			}

			mediaType := RouteKind(page.Route).MediaType()
			minified, err := s.minifier.Minify(mediaType, out)
			if err != nil {
				s.logger.Warn(gctx, err, "Serving unminified output", "route", page.Route)
				minified = out
			}
			rendered[i] = page.withRendered(minified)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*Page, len(rendered))
	for _, page := range rendered {
		if page == nil {
			report.Dropped++
			continue
		}
		out[page.Route] = page
	}
	return out, nil
}
