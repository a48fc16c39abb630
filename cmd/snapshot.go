package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Spencerx/releasekit/internal/release"
	"github.com/Spencerx/releasekit/internal/runstate"
)

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the persisted release plan and publish journal without mutating anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return runSnapshot(rt)
		},
	}
}

type snapshotView struct {
	Plan    *release.Plan     `json:"plan,omitempty"`
	Journal *runstate.Journal `json:"journal,omitempty"`
}

// runSnapshot is a read-only diagnostic: it dumps exactly the on-disk
// state a resumed publish would read (release_plan.json and
// journal.json), for a human or CI step to inspect after an interrupted
// run without running any command that could itself mutate that state.
func runSnapshot(rt *runtime) error {
	stateDir := filepath.Join(rt.Root, ".releasekit")

	plan, err := release.Load(stateDir)
	if err != nil {
		return err
	}
	journal, err := runstate.Load(filepath.Join(stateDir, "journal.json"))
	if err != nil {
		return err
	}

	view := snapshotView{Plan: plan, Journal: journal}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}
