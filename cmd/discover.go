package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newDiscoverCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Enumerate workspace packages and print their ecosystem, directory, and version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return runDiscover(rt, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print machine-readable JSON instead of a table")
	return cmd
}

func runDiscover(rt *runtime, jsonOutput bool) error {
	names := make([]string, 0, len(rt.Discovery.Packages))
	for name := range rt.Discovery.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	if jsonOutput {
		type row struct {
			Name      string `json:"name"`
			Ecosystem string `json:"ecosystem"`
			Dir       string `json:"dir"`
			Version   string `json:"version"`
		}
		rows := make([]row, 0, len(names))
		for _, name := range names {
			info := rt.Discovery.Packages[name]
			rows = append(rows, row{Name: name, Ecosystem: info.Ecosystem, Dir: info.Dir, Version: info.Version})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Package", "Ecosystem", "Version", "Directory"})
	for _, name := range names {
		info := rt.Discovery.Packages[name]
		table.Append([]string{name, info.Ecosystem, info.Version, info.Dir})
	}
	table.Render()

	fmt.Printf("%d package(s) discovered\n", len(names))
	return nil
}
