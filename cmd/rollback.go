package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Spencerx/releasekit/internal/diagnostics"
	"github.com/Spencerx/releasekit/internal/pin"
)

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Restore every ephemeral manifest mutation left behind by an interrupted publish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return runRollback(rt)
		},
	}
}

func runRollback(rt *runtime) error {
	backupDir := filepath.Join(rt.Root, ".releasekit", "pins")
	pins, err := pin.NewManager(backupDir, logrus.NewEntry(rt.Logger))
	if err != nil {
		return err
	}
	defer pins.Close()

	errs := pins.RestoreAll()
	if len(errs) > 0 {
		return diagnostics.New(diagnostics.CodePinRestoreFail, diagnostics.ClassPinIntegrity,
			fmt.Sprintf("%d manifest(s) could not be restored", len(errs)),
			"inspect the worktree by hand before running any further releasekit command", errs[0])
	}

	fmt.Println("all ephemeral manifest mutations restored")
	return nil
}
