//go:build property

package config

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/tessera/internal/content"
)

func TestConfigurationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("port validity follows the TCP range", prop.ForAll(
		func(port int) bool {
			cfg := &Config{Server: ServerConfig{Host: "localhost", Port: port}}
			err := validateConfig(cfg)
			return (err == nil) == (port >= 0 && port <= 65535)
		},
		gen.IntRange(-1000, 70000),
	))

	properties.Property("redirect tables with distinct sources validate", prop.ForAll(
		func(n int, permanent bool) bool {
			typ := RedirectTemporary
			if permanent {
				typ = RedirectPermanent
			}
			cfg := &Config{}
			for i := 0; i < n; i++ {
				cfg.Redirects = append(cfg.Redirects, RedirectConfig{
					From: fmt.Sprintf("/from/%d", i),
					To:   fmt.Sprintf("/to/%d", i),
					Type: typ,
				})
			}
			return validateConfig(cfg) == nil
		},
		gen.IntRange(0, 30),
		gen.Bool(),
	))

	properties.Property("a repeated redirect source is always rejected", prop.ForAll(
		func(n int) bool {
			cfg := &Config{}
			for i := 0; i < n; i++ {
				cfg.Redirects = append(cfg.Redirects, RedirectConfig{From: fmt.Sprintf("/r%d", i), To: "/x", Type: RedirectPermanent})
			}
			cfg.Redirects = append(cfg.Redirects, RedirectConfig{From: "/r0", To: "/y", Type: RedirectPermanent})
			return validateConfig(cfg) != nil
		},
		gen.IntRange(1, 30),
	))

	properties.Property("page types need both path and template", prop.ForAll(
		func(path, tmpl string) bool {
			cfg := &Config{Content: ContentConfig{PageTypes: []content.PageType{{Kind: "k", Path: path, DefaultTemplate: tmpl}}}}
			err := validateConfig(cfg)
			return (err == nil) == (path != "" && tmpl != "")
		},
		gen.OneConstOf("", "posts"),
		gen.OneConstOf("", "post.html"),
	))

	properties.TestingRun(t)
}
