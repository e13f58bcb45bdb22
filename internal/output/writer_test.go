package output

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tessera/internal/content"
	"github.com/conneroisu/tessera/internal/logging"
	"github.com/conneroisu/tessera/internal/store"
)

func snapshot(pages map[string]string) *store.Snapshot {
	m := make(map[string]*content.Page, len(pages))
	for route, body := range pages {
		body := body
		m[route] = &content.Page{Route: route, Meta: content.Meta{Rendered: &body}}
	}
	return store.New().Swap(m)
}

func TestFilePath(t *testing.T) {
	tests := []struct {
		route string
		want  string
	}{
		{"/", "index.html"},
		{"/a", "a/index.html"},
		{"/a/b", "a/b/index.html"},
		{"/a/", "a/index.html"},
		{"/feed.xml", "feed.xml"},
		{"/css/site.css", "css/site.css"},
		{"/posts/v1.2", "posts/v1.2/index.html"},
		{"/notes.md", "notes.md/index.html"},
		{"/index.html", "index.html"},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			got, err := FilePath(tt.route)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FilePath("/../etc/passwd")
	assert.Error(t, err)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWriteMirrorsSnapshot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "public")
	w := NewWriter(root, logging.NewNop())

	err := w.Write(context.Background(), snapshot(map[string]string{
		"/":         "home",
		"/a":        "<h1>Hi</h1>",
		"/feed.xml": "<rss/>",
	}))
	require.NoError(t, err)

	assert.Equal(t, "home", readFile(t, filepath.Join(root, "index.html")))
	assert.Equal(t, "<h1>Hi</h1>", readFile(t, filepath.Join(root, "a", "index.html")))
	assert.Equal(t, "<rss/>", readFile(t, filepath.Join(root, "feed.xml")))
}

func TestWriteReplacesPreviousTree(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "public")
	w := NewWriter(root, logging.NewNop())
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, snapshot(map[string]string{"/old": "old", "/keep": "v1"})))
	require.NoError(t, w.Write(ctx, snapshot(map[string]string{"/keep": "v2"})))

	assert.NoFileExists(t, filepath.Join(root, "old", "index.html"))
	assert.Equal(t, "v2", readFile(t, filepath.Join(root, "keep", "index.html")))

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging directories must not be left behind")
	assert.Equal(t, "public", entries[0].Name())
}

func TestWriteSkipsUnwritableRoutes(t *testing.T) {
	root := filepath.Join(t.TempDir(), "public")
	w := NewWriter(root, logging.NewNop())

	err := w.Write(context.Background(), snapshot(map[string]string{
		"/a":          "a",
		"/../escape":  "x",
		"/feed.xml":   "feed",
		"/feed.xml/x": "nested under a file",
	}))
	require.NoError(t, err)

	assert.Equal(t, "a", readFile(t, filepath.Join(root, "a", "index.html")))
	assert.Equal(t, "feed", readFile(t, filepath.Join(root, "feed.xml")))
}

func TestWriteCollidingFilePaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "public")
	var logs bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelWarn, Format: "json", Output: &logs})
	w := NewWriter(root, logger)

	err := w.Write(context.Background(), snapshot(map[string]string{
		"/":           "home",
		"/index.html": "other home",
		"/v1.2":       "release",
	}))
	require.NoError(t, err)

	assert.Equal(t, "home", readFile(t, filepath.Join(root, "index.html")), "first route keeps the file")
	assert.Equal(t, "release", readFile(t, filepath.Join(root, "v1.2", "index.html")))
	assert.Contains(t, logs.String(), "colliding output path")
	assert.Contains(t, logs.String(), `"route":"/index.html"`)
}
