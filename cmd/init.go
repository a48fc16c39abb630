package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/Spencerx/releasekit/internal/discovery"
)

func newInitCmd() *cobra.Command {
	var forge, owner, repoName string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a releasekit.toml in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(forge, owner, repoName)
		},
	}

	cmd.Flags().StringVar(&forge, "forge", "github", "forge backend (github)")
	cmd.Flags().StringVar(&owner, "repo-owner", "", "repository owner/org")
	cmd.Flags().StringVar(&repoName, "repo-name", "", "repository name")

	return cmd
}

func runInit(forge, owner, repoName string) error {
	dir := flagRoot
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}
		dir = wd
	}

	path := filepath.Join(dir, discovery.ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists in %s", discovery.ConfigFileName, dir)
	}

	if repoName == "" {
		repoName = filepath.Base(dir)
	}

	skeleton := map[string]any{
		"forge":              forge,
		"repo_owner":         owner,
		"repo_name":          repoName,
		"default_branch":     "main",
		"pr_title_template":  "chore(release): {version}",
		"tag_format":         "{name}-v{version}",
		"concurrency":        4,
		"max_retries":        3,
		"poll_interval":      "5s",
		"poll_timeout":       "5m",
		"release_mode":       "pr",
		"synchronize":        false,
		"versioning_scheme":  "semver",
		"workspace": map[string]any{
			"default": map[string]any{
				"ecosystem": "go",
				"root":      ".",
			},
		},
	}

	data, err := toml.Marshal(skeleton)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", discovery.ConfigFileName, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", discovery.ConfigFileName, err)
	}

	fmt.Printf("wrote %s\n", path)
	fmt.Println("edit the [workspace.default] section to match your monorepo layout, then run `releasekit discover`")
	return nil
}
