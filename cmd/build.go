package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tessera/internal/output"
	"github.com/conneroisu/tessera/internal/rebuild"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Build the site once and write it to disk",
	Long: `Compile and render every page once and write the result to the output
directory, replacing its previous contents.

Examples:
  tessera build               # Write to output.path (default: public)
  tessera build -o dist       # Write to dist`,
	RunE: runBuild,
}

var buildOutput string

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "Output directory (overrides output.path)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if buildOutput != "" {
		cfg.Output.Path = buildOutput
	}

	s := newSite(cfg, logger)
	res, err := s.build(cmd.Context())
	if err != nil {
		return err
	}

	w := output.NewWriter(cfg.Output.Path, logger)
	if err := w.Write(cmd.Context(), res.Snapshot); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	printBuildSummary(cmd, res, w.Root)
	return nil
}

func printBuildSummary(cmd *cobra.Command, res rebuild.Result, root string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Built %d pages into %s in %s\n", res.Snapshot.Len(), root, res.Duration.Round(time.Millisecond))
	if len(res.Errors) == 0 {
		return
	}
	fmt.Fprintf(out, "%d files were skipped or dropped:\n", len(res.Errors))
	for _, err := range res.Errors {
		fmt.Fprintf(out, "  - %v\n", err)
	}
}
