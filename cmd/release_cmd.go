package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Spencerx/releasekit/internal/release"
)

func newReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release",
		Short: "Tag and create forge releases for every package in the merged Release PR's manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return runRelease(cmd, rt)
		},
	}
}

func runRelease(cmd *cobra.Command, rt *runtime) error {
	proto := release.NewProtocol(rt.Config, rt.Graph(), rt.VCS, rt.Forge, rt.Workspaces, filepath.Join(rt.Root, ".releasekit"))
	result, err := proto.Release(cmd.Context())
	if err != nil {
		return err
	}

	if len(result.Tags) == 0 {
		fmt.Println("no new tags created (already released)")
		return nil
	}
	fmt.Printf("tagged: %v\n", result.Tags)
	for _, url := range result.ReleaseURLs {
		fmt.Println(url)
	}
	return nil
}
