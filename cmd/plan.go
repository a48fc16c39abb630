package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Spencerx/releasekit/internal/version"
)

func newPlanCmd() *cobra.Command {
	var forceUnchanged bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute the release plan (per-package version bumps) without writing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			plan, err := computePlan(cmd, rt, forceUnchanged)
			if err != nil {
				return err
			}
			fmt.Println(planSummary(plan.Bumps))
			if len(plan.Skipped) > 0 {
				fmt.Printf("skipped (no releasable commits): %v\n", plan.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&forceUnchanged, "force-unchanged", false, "bump every selected package even with zero direct release commits")
	return cmd
}

// computePlan is the shared plan/prepare/should-release entry point: it
// resolves the selected packages, their contexts, commit windows, and
// runs the version engine.
func computePlan(cmd *cobra.Command, rt *runtime, forceUnchanged bool) (*version.Plan, error) {
	selected := rt.selectedPackages()

	ctxs, err := rt.packageContexts(selected)
	if err != nil {
		return nil, err
	}

	commits, err := rt.commitWindows(cmd.Context(), selected, ctxs)
	if err != nil {
		return nil, err
	}

	engine := version.NewEngine(rt.Graph())
	return engine.Compute(commits, rt.fromVersions(selected), ctxs, forceUnchanged)
}
