package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Spencerx/releasekit/internal/release"
	"github.com/Spencerx/releasekit/internal/version"
)

func newPrepareCmd() *cobra.Command {
	var forceUnchanged bool
	var message string

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Compute the release plan and open or update the Release PR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return runPrepare(cmd, rt, forceUnchanged, message)
		},
	}

	cmd.Flags().BoolVar(&forceUnchanged, "force-unchanged", false, "bump every selected package even with zero direct release commits")
	cmd.Flags().StringVar(&message, "message", "", "extra prose to include in the Release PR body")
	return cmd
}

func runPrepare(cmd *cobra.Command, rt *runtime, forceUnchanged bool, message string) error {
	ctx := cmd.Context()
	selected := rt.selectedPackages()

	ctxs, err := rt.packageContexts(selected)
	if err != nil {
		return err
	}
	commits, err := rt.commitWindows(ctx, selected, ctxs)
	if err != nil {
		return err
	}

	if flagDryRun {
		engine := version.NewEngine(rt.Graph())
		plan, err := engine.Compute(commits, rt.fromVersions(selected), ctxs, forceUnchanged)
		if err != nil {
			return err
		}
		fmt.Println(planSummary(plan.Bumps))
		return nil
	}

	proto := release.NewProtocol(rt.Config, rt.Graph(), rt.VCS, rt.Forge, rt.Workspaces, filepath.Join(rt.Root, ".releasekit"))
	result, err := proto.Prepare(ctx, commits, rt.fromVersions(selected), ctxs, forceUnchanged, rt.PackageManagers, message)
	if err != nil {
		return err
	}

	fmt.Printf("release PR #%d: %s\n", result.PR.Number, result.PR.URL)
	fmt.Println(planSummary(result.Plan.Bumps))
	return nil
}
