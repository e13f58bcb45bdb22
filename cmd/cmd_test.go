package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tessera/internal/content"
	"github.com/conneroisu/tessera/internal/store"
)

// newProject lays out a small site in a temporary directory and makes it
// the working directory.
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		".tessera.yml":          "log:\n  level: error\n",
		"templates/page.html":   "<html><body>{{ .Page.Content }}</body></html>",
		"templates/raw.html":    "{{ .Page.Content }}",
		"content/index.md":      "---\nslug: /\n---\n# Home\n",
		"content/about.md":      "---\nslug: about\n---\nAbout us\n",
		"content/style.css":     "---\nslug: /style.css\ntemplate: raw.html\n---\nbody { color: red; }\n",
		"content/broken.md":     "no header here\n",
		"content/.hidden.md":    "---\nslug: hidden\n---\nx\n",
		"content/notes.md.swp":  "swap",
		"content/nested/doc.md": "---\nslug: /docs/nested\n---\nnested\n",
	}
	for rel, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("TESSERA_ENV", "")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	buildOutput = ""
	cssOutput, cssTheme = "", ""
	routesFormat = "table"
	versionFormat, versionShort, versionDetailed = "text", false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildCommand(t *testing.T) {
	dir := newProject(t)

	out, err := execute(t, "build", "-o", "dist")
	require.NoError(t, err)
	assert.Contains(t, out, "Built 4 pages into dist")
	assert.Contains(t, out, "1 files were skipped or dropped")

	index, err := os.ReadFile(filepath.Join(dir, "dist", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "<h1>Home</h1>")

	_, err = os.Stat(filepath.Join(dir, "dist", "about", "index.html"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "dist", "docs", "nested", "index.html"))
	assert.NoError(t, err)

	css, err := os.ReadFile(filepath.Join(dir, "dist", "style.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", string(css))
}

func TestBuildFailsWithoutTemplates(t *testing.T) {
	dir := newProject(t)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "templates")))

	_, err := execute(t, "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading templates")
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	dir := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tessera.yml"), []byte("server:\n  port: 99999\n"), 0644))

	_, err := execute(t, "build")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestRoutesCommand(t *testing.T) {
	newProject(t)

	out, err := execute(t, "routes", "-f", "json")
	require.NoError(t, err)

	var infos []routeInfo
	require.NoError(t, json.Unmarshal([]byte(out[strings.Index(out, "["):]), &infos))
	require.Len(t, infos, 4)

	routes := make([]string, len(infos))
	for i, info := range infos {
		routes[i] = info.Route
	}
	assert.Equal(t, []string{"/", "/about", "/docs/nested", "/style.css"}, routes)
	assert.Equal(t, "text/css; charset=utf-8", infos[3].ContentType)
}

func TestRoutesRejectsUnknownFormat(t *testing.T) {
	newProject(t)

	_, err := execute(t, "routes", "-f", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported value")
}

func sampleSnapshot() *store.Snapshot {
	body := "<p>x</p>"
	css := "a{}"
	st := store.New()
	return st.Swap(map[string]*content.Page{
		"/b":     {Route: "/b", PageKind: "page", Meta: content.Meta{Template: "page.html", Rendered: &body}},
		"/a.css": {Route: "/a.css", PageKind: "page", Meta: content.Meta{Rendered: &css}},
	})
}

func TestWriteRoutesFormats(t *testing.T) {
	infos := collectRoutes(sampleSnapshot())
	require.Len(t, infos, 2)
	assert.Equal(t, "/a.css", infos[0].Route)
	assert.Equal(t, 8, infos[1].Size)

	var table bytes.Buffer
	require.NoError(t, writeRoutes(&table, infos, "table"))
	lines := strings.Split(strings.TrimSpace(table.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ROUTE"))
	assert.Contains(t, lines[2], "text/html; charset=utf-8")

	var y bytes.Buffer
	require.NoError(t, writeRoutes(&y, infos, "yaml"))
	var decoded []routeInfo
	require.NoError(t, yaml.Unmarshal(y.Bytes(), &decoded))
	assert.Equal(t, infos, decoded)

	assert.Error(t, writeRoutes(&bytes.Buffer{}, infos, "xml"))
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeVersion(&buf, "json", false, false))
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")

	buf.Reset()
	require.NoError(t, writeVersion(&buf, "text", false, false))
	assert.True(t, strings.HasPrefix(buf.String(), "tessera "))

	assert.Error(t, writeVersion(&buf, "xml", false, false))
}

func TestFlagValidation(t *testing.T) {
	assert.NoError(t, ValidatePort("8765"))
	assert.Error(t, ValidatePort("0"))
	assert.Error(t, ValidatePort("http"))

	assert.NoError(t, validateChoice("JSON", outputFormats))
	assert.Error(t, validateChoice("csv", outputFormats))

	assert.Error(t, serveCmd.Flags().Set("port", "70000"))
}

func TestCSSCommand(t *testing.T) {
	dir := newProject(t)

	out, err := execute(t, "css")
	require.NoError(t, err)
	assert.Contains(t, out, "{")

	_, err = execute(t, "css", "-o", filepath.Join("static", "syntax.css"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "static", "syntax.css"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
