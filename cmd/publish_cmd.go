package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Spencerx/releasekit/internal/lock"
	"github.com/Spencerx/releasekit/internal/pin"
	"github.com/Spencerx/releasekit/internal/publisher"
	"github.com/Spencerx/releasekit/internal/release"
	"github.com/Spencerx/releasekit/internal/runstate"
	"github.com/Spencerx/releasekit/internal/version"
)

func newPublishCmd() *cobra.Command {
	var dispatchEvent string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Build, publish, and verify every package from the last tagged release, in dependency order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return runPublish(cmd, rt, dispatchEvent)
		},
	}

	cmd.Flags().StringVar(&dispatchEvent, "dispatch-event", "", "repository_dispatch event type to fire after a successful publish")
	return cmd
}

func runPublish(cmd *cobra.Command, rt *runtime, dispatchEvent string) error {
	ctx := cmd.Context()
	stateDir := filepath.Join(rt.Root, ".releasekit")

	plan, err := release.Load(stateDir)
	if err != nil {
		return err
	}

	lk := lock.New(filepath.Join(stateDir, "lock.json"), 30*time.Minute)

	journalPath := filepath.Join(stateDir, "journal.json")
	hash := planHash(plan.Bumps)
	journal, err := runstate.Load(journalPath)
	if err != nil {
		return err
	}
	if !journal.Resumable(plan.GitSHA, hash) {
		journal = runstate.New(journalPath, plan.GitSHA, plan.GitSHA, hash, planBumpSlice(plan.Bumps), time.Now())
	}
	alreadyPublished := journal.AlreadyDone()

	pins, err := pin.NewManager(filepath.Join(stateDir, "pins"), logrus.NewEntry(rt.Logger))
	if err != nil {
		return err
	}
	stopSignalHandler := pins.InstallSignalHandler()
	defer stopSignalHandler()
	defer pins.Close()

	sources := make(map[string]*publisher.Source, len(plan.Bumps))
	for name := range plan.Bumps {
		info := rt.Discovery.Packages[name]
		resolved := rt.resolvedConfigFor(name)
		sources[name] = &publisher.Source{
			Dir:          info.Dir,
			PollInterval: resolved.PollInterval.Duration,
			PollTimeout:  resolved.PollTimeout.Duration,
			Workspace:    rt.Workspaces[name],
			PackageMgr:   rt.PackageManagers[name],
			Registry:     buildRegistry(info.Ecosystem),
			// A package the journal already attempted before this
			// process started (Attempts > 0, carried over from a
			// resumed, not fresh, journal) may have reached the
			// registry on a prior run that crashed before marking it
			// done. Treat "already exists" as success on resume rather
			// than a hard failure (§4.G.3).
			SkipExisting: journal.PerPackage[name] != nil && journal.PerPackage[name].Attempts > 0,
		}
	}

	pub := publisher.New(rt.Graph(), sources, pins, journal)

	proto := release.NewProtocol(rt.Config, rt.Graph(), rt.VCS, rt.Forge, rt.Workspaces, stateDir)
	result, err := proto.Publish(ctx, pub, plan.Bumps, lk, flagForce, alreadyPublished, dispatchEvent)
	if result != nil {
		fmt.Printf("done: %v\nfailed: %v\nblocked: %v\ncancelled: %v\n", result.Done, result.Failed, result.Blocked, result.Cancelled)
	}
	return err
}

func planHash(bumps map[string]*version.PackageBump) string {
	// Per-package hashes are summed so the result does not depend on map
	// iteration order.
	h := 0
	for name, bump := range bumps {
		hp := 0
		for _, c := range name + bump.ToVersion {
			hp = hp*31 + int(c)
		}
		h += hp
	}
	return fmt.Sprintf("%x", h)
}

func planBumpSlice(bumps map[string]*version.PackageBump) []*version.PackageBump {
	out := make([]*version.PackageBump, 0, len(bumps))
	for _, b := range bumps {
		out = append(out, b)
	}
	return out
}
