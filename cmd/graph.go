package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the internal dependency graph as topological levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return runGraph(rt)
		},
	}
}

func runGraph(rt *runtime) error {
	graph := rt.Graph()

	levels, err := graph.TopologicalSort()
	if err != nil {
		return err
	}

	for i, level := range levels {
		names := append([]string(nil), level...)
		sort.Strings(names)
		fmt.Printf("level %d: %s\n", i, strings.Join(names, ", "))
	}
	return nil
}
