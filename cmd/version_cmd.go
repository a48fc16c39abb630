package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// Set via -ldflags "-X github.com/Spencerx/releasekit/cmd.buildVersion=...".
var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

func newVersionCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the releasekit binary version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version": buildVersion,
				"commit":  buildCommit,
				"date":    buildDate,
				"go":      runtime.Version(),
			}
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Printf("releasekit %s (%s, built %s, %s)\n", info["version"], info["commit"], info["date"], info["go"])
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output version information as JSON")
	return cmd
}
