package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Spencerx/releasekit/internal/changelog"
	"github.com/Spencerx/releasekit/internal/release"
	"github.com/Spencerx/releasekit/internal/version"
)

func newPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote",
		Short: "Strip the prerelease label from the selected packages' current tag and cut a stable release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return runPromote(cmd.Context(), rt)
		},
	}
}

// runPromote is the "graduate a prerelease" path: each selected package's
// current version is stripped of its prerelease label, tagged, and
// released directly, bypassing the Release PR (there is no plan to merge,
// only a stability label to drop). Mirrors the tag/push/release sequence
// of Protocol.Release rather than routing through it, since promotion acts
// on one already-released version rather than a staged plan.
func runPromote(ctx context.Context, rt *runtime) error {
	selected := rt.selectedPackages()
	promoted := 0
	for name := range selected {
		info := rt.Discovery.Packages[name]
		resolved := rt.resolvedConfigFor(name)
		scheme, err := version.SchemeFor(resolved.VersioningScheme)
		if err != nil {
			return err
		}
		stable, err := scheme.StripPrerelease(info.Version)
		if err != nil {
			return fmt.Errorf("stripping prerelease from %s@%s: %w", name, info.Version, err)
		}
		if stable == info.Version {
			continue
		}
		tag := release.FormatTag(resolved.TagFormat, name, stable)
		exists, err := rt.VCS.TagExists(ctx, tag)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if flagDryRun {
			fmt.Printf("%s: would promote %s -> %s (%s)\n", name, info.Version, stable, tag)
			continue
		}
		if err := rt.VCS.Tag(ctx, tag, fmt.Sprintf("Release %s %s", name, stable)); err != nil {
			return fmt.Errorf("tagging %s: %w", tag, err)
		}
		if err := rt.VCS.Push(ctx, "refs/tags/"+tag, false); err != nil {
			return fmt.Errorf("pushing tag %s: %w", tag, err)
		}
		if rt.Forge != nil {
			notes := changelog.RenderSection(name, stable, nil, time.Now())
			rel, err := rt.Forge.CreateRelease(ctx, tag, fmt.Sprintf("%s %s", name, stable), notes, false, false)
			if err != nil {
				return fmt.Errorf("creating forge release for %s: %w", tag, err)
			}
			fmt.Println(rel.URL)
		}
		fmt.Printf("%s: promoted %s -> %s\n", name, info.Version, stable)
		promoted++
	}
	if promoted == 0 && !flagDryRun {
		fmt.Println("no prerelease packages to promote")
	}
	return nil
}
