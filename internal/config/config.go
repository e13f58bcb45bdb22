// Package config loads tessera's settings through viper.
//
// Values come from, in increasing priority: built-in defaults, the config
// file (.tessera.yml or --config), an environment overlay file
// config/<TESSERA_ENV>.yml, TESSERA_<SECTION>_<KEY> variables and flags
// bound by the commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tessera/internal/content"
	"github.com/conneroisu/tessera/internal/errors"
)

// EnvVar selects the environment overlay.
const EnvVar = "TESSERA_ENV"

// DefaultEnv is used when EnvVar is unset.
const DefaultEnv = "development"

// Config is the full tessera configuration.
type Config struct {
	Env       string           `mapstructure:"env" yaml:"env"`
	Content   ContentConfig    `mapstructure:"content" yaml:"content"`
	Templates TemplatesConfig  `mapstructure:"templates" yaml:"templates"`
	Static    StaticConfig     `mapstructure:"static" yaml:"static"`
	Server    ServerConfig     `mapstructure:"server" yaml:"server"`
	Cache     CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Watch     WatchConfig      `mapstructure:"watch" yaml:"watch"`
	Output    OutputConfig     `mapstructure:"output" yaml:"output"`
	Redirects []RedirectConfig `mapstructure:"redirects" yaml:"redirects"`
	Site      SiteConfig       `mapstructure:"site" yaml:"site"`
	Log       LogConfig        `mapstructure:"log" yaml:"log"`
}

// ContentConfig locates the source documents.
type ContentConfig struct {
	Path           string             `mapstructure:"path" yaml:"path"`
	PageTypes      []content.PageType `mapstructure:"page_types" yaml:"page_types"`
	StaticIncludes []string           `mapstructure:"static_includes" yaml:"static_includes"`
	SyntaxTheme    string             `mapstructure:"syntax_theme" yaml:"syntax_theme"`
	Concurrency    int                `mapstructure:"concurrency" yaml:"concurrency"`
}

type TemplatesConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type StaticConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	// Dev enables live reload.
	Dev     bool `mapstructure:"dev" yaml:"dev"`
	Metrics bool `mapstructure:"metrics" yaml:"metrics"`
}

// CacheConfig controls ETag and Cache-Control headers.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	MaxAge  int  `mapstructure:"max_age" yaml:"max_age"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// OutputConfig controls the on-disk mirror of the snapshot.
type OutputConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// RedirectConfig is one entry of the redirect table.
type RedirectConfig struct {
	From string `mapstructure:"from" yaml:"from"`
	To   string `mapstructure:"to" yaml:"to"`
	Type string `mapstructure:"type" yaml:"type"`
}

// Permanent reports whether the redirect answers with 301.
func (r RedirectConfig) Permanent() bool {
	return r.Type == RedirectPermanent
}

const (
	RedirectPermanent = "permanent"
	RedirectTemporary = "temporary"
)

// SiteConfig carries values exposed to every template as .Globals. Keys keep
// the case they have in the config files.
type SiteConfig struct {
	Globals map[string]interface{} `mapstructure:"globals" yaml:"globals"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers every default on v. Registering them is also what
// makes AutomaticEnv see keys that are absent from the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("env", DefaultEnv)
	v.SetDefault("content.path", "content")
	v.SetDefault("content.syntax_theme", "github")
	v.SetDefault("content.concurrency", 0)
	v.SetDefault("templates.path", "templates")
	v.SetDefault("static.path", "static")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.dev", false)
	v.SetDefault("server.metrics", true)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_age", 900)
	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.debounce", 300*time.Millisecond)
	v.SetDefault("output.enabled", false)
	v.SetDefault("output.path", "public")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load merges the environment overlay, unmarshals v and validates the
// result. Any error is a KindConfig error and should stop the process.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	overlay, err := mergeOverlay(v)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError("decoding configuration", err)
	}

	config.Site.Globals, err = globalsWithCase(config.Site.Globals, v.ConfigFileUsed(), overlay)
	if err != nil {
		return nil, err
	}

	applyDerivedDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, errors.NewConfigError("invalid configuration", err)
	}

	return &config, nil
}

// mergeOverlay merges config/<env>.yml, looked up next to the main config
// file, when it exists. It returns the path of the merged file.
func mergeOverlay(v *viper.Viper) (string, error) {
	env := os.Getenv(EnvVar)
	if env == "" {
		env = v.GetString("env")
	}
	if env == "" {
		env = DefaultEnv
	}
	v.Set("env", env)

	dir := "."
	if used := v.ConfigFileUsed(); used != "" {
		dir = filepath.Dir(used)
	}
	path := filepath.Join(dir, "config", env+".yml")

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.NewConfigError("opening environment overlay", err).WithPath(path)
	}
	defer f.Close()

	v.SetConfigType("yaml")
	if err := v.MergeConfig(f); err != nil {
		return "", errors.NewConfigError("merging environment overlay", err).WithPath(path)
	}
	return path, nil
}

// globalsWithCase restores the key case viper folds away. The site.globals
// block of each YAML file is decoded directly, in merge order, and its keys
// replace their lowercased counterparts. Keys from other sources stay as
// viper reports them.
func globalsWithCase(folded map[string]interface{}, files ...string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(folded))
	for k, v := range folded {
		out[k] = v
	}

	for _, path := range files {
		if path == "" {
			continue
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yml", ".yaml":
		default:
			continue
		}

		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.NewConfigError("reading site globals", err).WithPath(path)
		}

		var raw struct {
			Site struct {
				Globals map[string]interface{} `yaml:"globals"`
			} `yaml:"site"`
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.NewConfigError("decoding site globals", err).WithPath(path)
		}

		for key, value := range raw.Site.Globals {
			for existing := range out {
				if strings.EqualFold(existing, key) {
					delete(out, existing)
				}
			}
			out[key] = value
		}
	}
	return out, nil
}

// applyDerivedDefaults fills values that depend on other settings.
func applyDerivedDefaults(config *Config) {
	if len(config.Content.PageTypes) == 0 {
		config.Content.PageTypes = []content.PageType{{
			Kind:            "page",
			Path:            config.Content.Path,
			DefaultTemplate: "page.html",
		}}
	}
	for i := range config.Redirects {
		if config.Redirects[i].Type == "" {
			config.Redirects[i].Type = RedirectPermanent
		}
	}
	if config.Site.Globals == nil {
		config.Site.Globals = make(map[string]interface{})
	}
}

// ScanOptions converts the content settings for the scanner.
func (c *Config) ScanOptions() content.ScanOptions {
	return content.ScanOptions{
		PageTypes:      c.Content.PageTypes,
		StaticIncludes: c.Content.StaticIncludes,
		TemplatesPath:  c.Templates.Path,
		Globals:        c.Site.Globals,
		Concurrency:    c.Content.Concurrency,
	}
}

// WatchRoots lists every directory whose changes should trigger a rebuild,
// without duplicates.
func (c *Config) WatchRoots() []string {
	seen := make(map[string]bool)
	var roots []string
	add := func(p string) {
		if p == "" {
			return
		}
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			roots = append(roots, p)
		}
	}

	add(c.Content.Path)
	for _, pt := range c.Content.PageTypes {
		add(pt.Path)
	}
	add(c.Templates.Path)
	add(c.Static.Path)
	return roots
}

func (c *Config) String() string {
	return fmt.Sprintf("env=%s content=%s templates=%s addr=%s:%d", c.Env, c.Content.Path, c.Templates.Path, c.Server.Host, c.Server.Port)
}
