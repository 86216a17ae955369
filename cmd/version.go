package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitekit/internal/version"
)

func newVersionCmd() *cobra.Command {
	var (
		format   string
		short    bool
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the version, commit, build time, Go version and platform of
this binary.

Examples:
  sitekit version                # Version and short commit
  sitekit version --detailed     # Every field, one per line
  sitekit version --format json  # Machine-readable`,
		Args: cobra.NoArgs,
		// Version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()

			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			case "yaml":
				return writeYAML(cmd, info)
			case "text":
				switch {
				case short:
					fmt.Fprintln(out, info.Version)
				case detailed:
					fmt.Fprintln(out, info.Detailed())
				default:
					fmt.Fprintf(out, "sitekit %s\n", info.Short())
				}
				return nil
			default:
				return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json, yaml)")
	cmd.Flags().BoolVar(&short, "short", false, "print the version only")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "print every build field")
	return cmd
}
