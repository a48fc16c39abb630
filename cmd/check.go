package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration, discovery, and the dependency graph without mutating anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return runCheck(cmd.Context(), rt)
		},
	}
}

// runCheck re-validates what newRuntime already proved (config parses,
// discovery succeeds, the graph is acyclic) and reports on VCS health, so
// `releasekit check` gives one pass/fail answer before `prepare` runs.
func runCheck(ctx context.Context, rt *runtime) error {
	fmt.Printf("config: ok (%d workspace section(s))\n", len(rt.Config.Workspaces))
	fmt.Printf("discovery: ok (%d package(s))\n", len(rt.Discovery.Packages))

	clean, err := rt.VCS.IsClean(ctx)
	if err != nil {
		return err
	}
	if clean {
		fmt.Println("working tree: clean")
	} else {
		fmt.Println("working tree: dirty (prepare/release will refuse unless --force is set)")
	}

	if rt.Forge != nil && rt.Forge.IsAvailable(ctx) {
		fmt.Println("forge: reachable")
	} else {
		fmt.Println("forge: unavailable (forge operations will be skipped)")
	}

	levels, err := rt.Graph().TopologicalSort()
	if err != nil {
		return err
	}
	fmt.Printf("dependency graph: ok (%d level(s))\n", len(levels))
	return nil
}
