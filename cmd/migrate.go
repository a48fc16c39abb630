package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Spencerx/releasekit/internal/release"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bootstrap releasekit tags for packages with release history predating it, anchored at bootstrap_sha",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), rt)
		},
	}
}

// runMigrate gives every selected package that has never been tagged by
// releasekit a baseline tag at the configured bootstrap_sha, so a
// subsequent `releasekit plan` has a `since_tag` to diff commits against
// instead of walking the package's entire history. Packages already
// carrying a matching tag are left untouched; this command is safe to run
// repeatedly.
func runMigrate(ctx context.Context, rt *runtime) error {
	if rt.Config.BootstrapSHA == "" {
		return fmt.Errorf("bootstrap_sha is not set in releasekit.toml; migrate has no anchor commit to tag from")
	}

	originalBranch, err := rt.VCS.CurrentBranch(ctx)
	if err != nil {
		return err
	}

	selected := rt.selectedPackages()
	migrated := 0
	for name := range selected {
		info := rt.Discovery.Packages[name]
		resolved := rt.resolvedConfigFor(name)
		tag := release.FormatTag(resolved.TagFormat, name, info.Version)

		exists, err := rt.VCS.TagExists(ctx, tag)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		if flagDryRun {
			fmt.Printf("%s: would tag %s at %s (bootstrap)\n", name, tag, rt.Config.BootstrapSHA)
			continue
		}

		if err := rt.VCS.Checkout(ctx, rt.Config.BootstrapSHA); err != nil {
			return fmt.Errorf("checking out bootstrap_sha %s: %w", rt.Config.BootstrapSHA, err)
		}
		tagErr := rt.VCS.Tag(ctx, tag, fmt.Sprintf("Bootstrap tag for %s @ %s", name, info.Version))
		if tagErr == nil {
			tagErr = rt.VCS.Push(ctx, "refs/tags/"+tag, false)
		}
		if err := rt.VCS.Checkout(ctx, originalBranch); err != nil {
			return fmt.Errorf("returning to %s after bootstrap tag: %w", originalBranch, err)
		}
		if tagErr != nil {
			return fmt.Errorf("bootstrapping tag %s: %w", tag, tagErr)
		}

		fmt.Printf("%s: bootstrapped %s at %s\n", name, tag, rt.Config.BootstrapSHA)
		migrated++
	}

	if migrated == 0 && !flagDryRun {
		fmt.Println("every selected package is already tagged; nothing to migrate")
	}
	return nil
}
