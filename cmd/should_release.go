package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Spencerx/releasekit/internal/diagnostics"
)

func newShouldReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "should-release",
		Short: "Exit 10 if no selected package has releasable changes, 0 otherwise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			plan, err := computePlan(cmd, rt, false)
			if err != nil {
				return err
			}
			if len(plan.Bumps) == 0 {
				return diagnostics.New(diagnostics.CodeNoChanges, diagnostics.ClassPermanent,
					"no package in scope has releasable changes", "", nil)
			}
			fmt.Println(planSummary(plan.Bumps))
			return nil
		},
	}
}
