package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tessera/internal/renderer"
)

var cssCmd = &cobra.Command{
	Use:   "css",
	Short: "Print the stylesheet for highlighted code blocks",
	Long: `Print the CSS for the syntax theme set by content.syntax_theme. Code
blocks are rendered with token classes, so a site needs this stylesheet
for highlighting to show.

Examples:
  tessera css                          # Print to stdout
  tessera css -o static/syntax.css     # Write into the static directory
  tessera css --theme monokai          # Override the configured theme`,
	RunE: runCSS,
}

var (
	cssOutput string
	cssTheme  string
)

func init() {
	rootCmd.AddCommand(cssCmd)

	cssCmd.Flags().StringVarP(&cssOutput, "output", "o", "", "Write to this file instead of stdout")
	cssCmd.Flags().StringVar(&cssTheme, "theme", "", "Syntax theme (overrides content.syntax_theme)")
}

func runCSS(cmd *cobra.Command, args []string) error {
	theme := cssTheme
	if theme == "" {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		theme = cfg.Content.SyntaxTheme
	}

	if cssOutput == "" {
		return writeSyntaxCSS(cmd.OutOrStdout(), theme)
	}

	if err := os.MkdirAll(filepath.Dir(cssOutput), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(cssOutput), err)
	}
	f, err := os.Create(cssOutput)
	if err != nil {
		return fmt.Errorf("creating %s: %w", cssOutput, err)
	}
	if err := writeSyntaxCSS(f, theme); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeSyntaxCSS(w io.Writer, theme string) error {
	if err := renderer.NewHighlighter(theme).WriteCSS(w); err != nil {
		return fmt.Errorf("writing %s stylesheet: %w", theme, err)
	}
	return nil
}
