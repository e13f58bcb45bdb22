package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tessera/internal/content"
	"github.com/conneroisu/tessera/internal/store"
)

var routesCmd = &cobra.Command{
	Use:     "routes",
	Aliases: []string{"r"},
	Short:   "List every route the site would serve",
	Long: `Build the site once and list its routes with their page type, layout,
content type and size.

Examples:
  tessera routes            # Table
  tessera routes -f json    # JSON
  tessera routes -f yaml    # YAML`,
	RunE: runRoutes,
}

var routesFormat string

func init() {
	rootCmd.AddCommand(routesCmd)
	addFormatFlag(routesCmd, &routesFormat, outputFormats)
}

// routeInfo is one line of the listing.
type routeInfo struct {
	Route       string `json:"route" yaml:"route"`
	PageType    string `json:"page_type" yaml:"page_type"`
	Template    string `json:"template,omitempty" yaml:"template,omitempty"`
	ContentType string `json:"content_type" yaml:"content_type"`
	Size        int    `json:"size" yaml:"size"`
	Source      string `json:"source" yaml:"source"`
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	res, err := newSite(cfg, logger).build(cmd.Context())
	if err != nil {
		return err
	}

	return writeRoutes(cmd.OutOrStdout(), collectRoutes(res.Snapshot), routesFormat)
}

func collectRoutes(snap *store.Snapshot) []routeInfo {
	routes := snap.Routes()
	infos := make([]routeInfo, 0, len(routes))
	for _, route := range routes {
		page, _ := snap.Get(route)
		infos = append(infos, routeInfo{
			Route:       page.Route,
			PageType:    page.PageKind,
			Template:    page.Meta.Template,
			ContentType: content.RouteKind(page.Route).ContentType(),
			Size:        len(page.Output()),
			Source:      page.Source,
		})
	}
	return infos
}

func writeRoutes(w io.Writer, infos []routeInfo, format string) error {
	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(infos)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ROUTE\tTYPE\tTEMPLATE\tCONTENT TYPE\tSIZE")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", info.Route, info.PageType, info.Template, info.ContentType, info.Size)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}
