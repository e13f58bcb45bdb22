package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tessera/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the tessera version, git commit, build time, Go version and
target platform.

Examples:
  tessera version              # Version and commit
  tessera version --detailed   # Every build fact
  tessera version -f json      # As JSON`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	addFormatFlag(versionCmd, &versionFormat, []string{"text", "json", "yaml"})
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	return writeVersion(cmd.OutOrStdout(), versionFormat, versionShort, versionDetailed)
}

func writeVersion(w io.Writer, format string, short, detailed bool) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(version.GetBuildInfo())
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(version.GetBuildInfo())
	case "text", "":
		switch {
		case short:
			fmt.Fprintln(w, version.GetVersion())
		case detailed:
			fmt.Fprintln(w, version.GetDetailedVersion())
		default:
			line := "tessera " + version.GetShortVersion()
			if version.IsDirty() {
				line += " (dirty)"
			}
			fmt.Fprintln(w, line)
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", format)
	}
}
