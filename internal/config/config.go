// Package config loads ReleaseKit's flat TOML configuration: a root file at
// the workspace root, per-workspace [workspace.<label>] sections, and
// per-package releasekit.toml overrides inside package directories.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ReleaseMode selects whether releases go through a Release PR or publish
// directly from the current branch.
type ReleaseMode string

const (
	ReleaseModePR         ReleaseMode = "pr"
	ReleaseModeContinuous ReleaseMode = "continuous"
)

// Root is the top-level releasekit.toml at the workspace root.
type Root struct {
	Forge             string                 `toml:"forge"`
	RepoOwner         string                 `toml:"repo_owner"`
	RepoName          string                 `toml:"repo_name"`
	DefaultBranch     string                 `toml:"default_branch"`
	PRTitleTemplate   string                 `toml:"pr_title_template"`
	TagFormat         string                 `toml:"tag_format"`
	Concurrency       int                    `toml:"concurrency"`
	MaxRetries        int                    `toml:"max_retries"`
	PollInterval      Duration               `toml:"poll_interval"`
	PollTimeout       Duration               `toml:"poll_timeout"`
	ReleaseMode       ReleaseMode            `toml:"release_mode"`
	Synchronize       bool                   `toml:"synchronize"`
	VersioningScheme  string                 `toml:"versioning_scheme"`
	BootstrapSHA      string                 `toml:"bootstrap_sha"`
	Workspaces        map[string]*Workspace  `toml:"workspace"`
}

// Workspace is a [workspace.<label>] section. The fields it shares with Root
// let resolution fall through package > workspace > root > default;
// ecosystem, tool, root, umbrella_tag, group and prerelease_label have no
// root-level counterpart.
type Workspace struct {
	Ecosystem        string      `toml:"ecosystem"`
	Tool             string      `toml:"tool"`
	Root             string      `toml:"root"`
	TagFormat        string      `toml:"tag_format"`
	UmbrellaTag      string      `toml:"umbrella_tag"`
	Group            string      `toml:"group"`
	Concurrency      int         `toml:"concurrency"`
	MaxRetries       int         `toml:"max_retries"`
	PollInterval     Duration    `toml:"poll_interval"`
	PollTimeout      Duration    `toml:"poll_timeout"`
	ReleaseMode      ReleaseMode `toml:"release_mode"`
	Synchronize      *bool       `toml:"synchronize"`
	VersioningScheme string      `toml:"versioning_scheme"`
	PrereleaseLabel  string      `toml:"prerelease_label"`
}

// Package is the releasekit.toml dropped inside an individual package
// directory: group label, field overrides, and hook composition rules.
type Package struct {
	Group          string            `toml:"group"`
	Concurrency    int               `toml:"concurrency"`
	MaxRetries     int               `toml:"max_retries"`
	PollInterval   Duration          `toml:"poll_interval"`
	PollTimeout    Duration          `toml:"poll_timeout"`
	HooksReplace   bool              `toml:"hooks_replace"`
	Hooks          map[string]string `toml:"hooks"`
	PrereleaseLabel string           `toml:"prerelease_label"`
}

// Load reads and parses the root releasekit.toml at path.
func Load(path string) (*Root, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var root Root
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&root)
	return &root, nil
}

// LoadPackage reads releasekit.toml from a package directory, if present.
// A missing file is not an error; it returns a zero-value Package.
func LoadPackage(packageDir string) (*Package, error) {
	path := filepath.Join(packageDir, "releasekit.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Package{}, nil
		}
		return nil, fmt.Errorf("reading package config %s: %w", path, err)
	}

	var pkg Package
	if err := toml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parsing package config %s: %w", path, err)
	}
	return &pkg, nil
}

func applyDefaults(r *Root) {
	if r.Concurrency == 0 {
		r.Concurrency = 4
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.PollInterval.Duration == 0 {
		r.PollInterval = Duration{DefaultPollInterval}
	}
	if r.PollTimeout.Duration == 0 {
		r.PollTimeout = Duration{DefaultPollTimeout}
	}
	if r.ReleaseMode == "" {
		r.ReleaseMode = ReleaseModePR
	}
	if r.VersioningScheme == "" {
		r.VersioningScheme = "semver"
	}
	if r.TagFormat == "" {
		r.TagFormat = "{name}-v{version}"
	}
}

// Resolved is the fully merged, effective configuration for one package:
// package overrides > workspace section > root > built-in default.
type Resolved struct {
	Concurrency      int
	MaxRetries       int
	PollInterval     Duration
	PollTimeout      Duration
	ReleaseMode      ReleaseMode
	Synchronize      bool
	VersioningScheme string
	PrereleaseLabel  string
	TagFormat        string
	Hooks            map[string]string
}

// Resolve merges root, workspace, and package tiers for one package,
// following the precedence required by §6: package > workspace > root >
// built-in default. Hooks come from the package tier only: Root and
// Workspace carry no hooks, so nothing is concatenated across tiers and
// HooksReplace has no earlier tier's hooks to discard.
func Resolve(root *Root, ws *Workspace, pkg *Package) Resolved {
	res := Resolved{
		Concurrency:      root.Concurrency,
		MaxRetries:       root.MaxRetries,
		PollInterval:     root.PollInterval,
		PollTimeout:      root.PollTimeout,
		ReleaseMode:      root.ReleaseMode,
		Synchronize:      root.Synchronize,
		VersioningScheme: root.VersioningScheme,
		TagFormat:        root.TagFormat,
		Hooks:            map[string]string{},
	}

	if ws != nil {
		if ws.TagFormat != "" {
			res.TagFormat = ws.TagFormat
		}
		if ws.Concurrency != 0 {
			res.Concurrency = ws.Concurrency
		}
		if ws.MaxRetries != 0 {
			res.MaxRetries = ws.MaxRetries
		}
		if ws.PollInterval.Duration != 0 {
			res.PollInterval = ws.PollInterval
		}
		if ws.PollTimeout.Duration != 0 {
			res.PollTimeout = ws.PollTimeout
		}
		if ws.ReleaseMode != "" {
			res.ReleaseMode = ws.ReleaseMode
		}
		if ws.Synchronize != nil {
			res.Synchronize = *ws.Synchronize
		}
		if ws.VersioningScheme != "" {
			res.VersioningScheme = ws.VersioningScheme
		}
		if ws.PrereleaseLabel != "" {
			res.PrereleaseLabel = ws.PrereleaseLabel
		}
	}

	if pkg != nil {
		if pkg.Concurrency != 0 {
			res.Concurrency = pkg.Concurrency
		}
		if pkg.MaxRetries != 0 {
			res.MaxRetries = pkg.MaxRetries
		}
		if pkg.PollInterval.Duration != 0 {
			res.PollInterval = pkg.PollInterval
		}
		if pkg.PollTimeout.Duration != 0 {
			res.PollTimeout = pkg.PollTimeout
		}
		if pkg.PrereleaseLabel != "" {
			res.PrereleaseLabel = pkg.PrereleaseLabel
		}
		if pkg.HooksReplace {
			res.Hooks = map[string]string{}
		}
		for k, v := range pkg.Hooks {
			res.Hooks[k] = v
		}
	}

	return res
}
