package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/conneroisu/tessera/internal/content"
	"github.com/conneroisu/tessera/internal/logging"
	"github.com/conneroisu/tessera/internal/store"
)

// NotFoundRoute is the route of the user-provided not-found page.
const NotFoundRoute = "/404"

// Redirect maps a missing route to another location.
type Redirect struct {
	From      string
	To        string
	Permanent bool
}

// StatusCode returns 301 for permanent and 302 for temporary redirects.
func (r Redirect) StatusCode() int {
	if r.Permanent {
		return http.StatusMovedPermanently
	}
	return http.StatusFound
}

// HandlerOptions configures a Handler.
type HandlerOptions struct {
	Redirects []Redirect
	Caching   bool
	MaxAge    int
	// LiveReload, when set, is the websocket endpoint injected into HTML
	// responses.
	LiveReload string
}

// Handler serves pages from the live snapshot.
type Handler struct {
	store      *store.Store
	redirects  map[string]Redirect
	caching    atomic.Bool
	maxAge     int
	liveScript string
	logger     logging.Logger
}

// NewHandler creates a handler reading from st.
func NewHandler(st *store.Store, opts HandlerOptions, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &Handler{
		store:     st,
		redirects: make(map[string]Redirect, len(opts.Redirects)),
		maxAge:    opts.MaxAge,
		logger:    logger.WithComponent("handler"),
	}
	for _, r := range opts.Redirects {
		h.redirects[r.From] = r
	}
	h.caching.Store(opts.Caching)
	if opts.LiveReload != "" {
		script, err := render(context.Background(), liveReloadScript(opts.LiveReload))
		if err != nil {
			h.logger.Error(context.Background(), err, "Failed to render live-reload script")
		}
		h.liveScript = script
	}
	return h
}

// SetCaching switches validators and cache headers on or off.
func (h *Handler) SetCaching(enabled bool) {
	h.caching.Store(enabled)
}

// Caching reports whether validators and cache headers are sent.
func (h *Handler) Caching() bool {
	return h.caching.Load()
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	snap := h.store.Load()
	route := r.URL.Path
	if route == "" {
		route = "/"
	}

	page, ok := snap.Get(route)
	if !ok && len(route) > 1 && strings.HasSuffix(route, "/") {
		page, ok = snap.Get(strings.TrimSuffix(route, "/"))
	}
	if ok {
		h.servePage(w, r, page, http.StatusOK)
		return
	}

	if rd, found := h.redirects[route]; found {
		w.Header().Set("Location", rd.To)
		w.WriteHeader(rd.StatusCode())
		return
	}

	if nf, found := snap.Get(NotFoundRoute); found {
		h.servePage(w, r, nf, http.StatusNotFound)
		return
	}

	body, err := render(r.Context(), notFoundPage(route))
	if err != nil {
		h.logger.Error(r.Context(), err, "Failed to render not-found page", "route", route)
		http.NotFound(w, r)
		return
	}
	h.write(w, r, content.KindHTML, body, http.StatusNotFound)
}

func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, page *content.Page, status int) {
	kind := content.RouteKind(page.Route)

	if status == http.StatusOK && h.caching.Load() {
		w.Header().Set("ETag", `"`+page.Meta.ETag+`"`)
		w.Header().Set("Cache-Control", "max-age="+strconv.Itoa(h.maxAge))
		if inm := r.Header.Get("If-None-Match"); inm != "" && MatchETag(inm, page.Meta.ETag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	h.write(w, r, kind, page.Output(), status)
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, kind content.Kind, body string, status int) {
	if h.liveScript != "" && kind == content.KindHTML {
		body = injectBeforeBodyEnd(body, h.liveScript)
	}
	w.Header().Set("Content-Type", kind.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, body); err != nil {
		h.logger.Debug(r.Context(), "Client went away", "path", r.URL.Path, "error", err.Error())
	}
}

// MatchETag reports whether an If-None-Match header value names etag.
// Entries are compared strongly: weak validators never match, and "*"
// matches any existing page.
func MatchETag(header, etag string) bool {
	for _, part := range strings.Split(header, ",") {
		candidate := strings.TrimSpace(part)
		switch {
		case candidate == "*":
			return true
		case strings.HasPrefix(candidate, "W/"):
			continue
		case candidate == `"`+etag+`"`:
			return true
		}
	}
	return false
}
