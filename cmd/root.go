// Package cmd is the thin CLI surface over ReleaseKit's core: argument
// parsing, config/runtime wiring, and output formatting only. Every
// operation it exposes (discover, plan, prepare, release, publish, ...)
// delegates straight to internal/ — this package holds no release logic
// of its own, mirroring the teacher's cmd/root.go split between a
// delegating root command and the packages underneath it.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Global flags, bound once on the root command and read by every
// subcommand via the package-level vars below (teacher: cmd/build.go's
// buildVerbose/buildJobs/... pattern).
var (
	flagDryRun      bool
	flagForce       bool
	flagGroup       []string
	flagWorkspace   string
	flagPublishFrom string
	flagConcurrency int
	flagMaxRetries  int
	flagVerbose     bool
	flagQuiet       bool
	flagRoot        string
)

var rootCmd = &cobra.Command{
	Use:           "releasekit",
	Short:         "Release orchestrator for polyglot monorepos",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&flagDryRun, "dry-run", false, "compute and print what would happen without mutating anything")
	pf.BoolVar(&flagForce, "force", false, "override safety checks (stale lock, existing tag, unclean tree)")
	pf.StringSliceVar(&flagGroup, "group", nil, "restrict the operation to one or more package groups")
	pf.StringVar(&flagWorkspace, "workspace", "", "restrict the operation to a single [workspace.<label>]")
	pf.StringVar(&flagPublishFrom, "publish-from", "local", "where publish is running: local or ci")
	pf.IntVar(&flagConcurrency, "concurrency", 0, "override the configured scheduler concurrency")
	pf.IntVar(&flagMaxRetries, "max-retries", 0, "override the configured per-package retry budget")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "log errors only")
	pf.StringVar(&flagRoot, "root", "", "workspace root (default: search upward for releasekit.toml)")

	rootCmd.AddCommand(
		newInitCmd(),
		newDiscoverCmd(),
		newGraphCmd(),
		newCheckCmd(),
		newPlanCmd(),
		newVersionCmd(),
		newPrepareCmd(),
		newReleaseCmd(),
		newPublishCmd(),
		newRollbackCmd(),
		newPromoteCmd(),
		newSnapshotCmd(),
		newShouldReleaseCmd(),
		newMigrateCmd(),
	)
}

// Execute runs the root command and returns its exit code. main.go is
// responsible only for calling this and passing the result to os.Exit.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	code := exitCode(err)
	fmt.Fprintln(os.Stderr, renderError(err))
	return code
}
