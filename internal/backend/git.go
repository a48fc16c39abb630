package backend

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Spencerx/releasekit/internal/diagnostics"
)

// GitVCS implements VCS by shelling out to the `git` binary, the same
// technique the teacher uses throughout cmd/release.go, cmd/changelog.go,
// and cmd/workspace_status.go (e.g. `exec.Command("git", "describe",
// "--tags", "--abbrev=0")`) rather than a library like go-git.
type GitVCS struct {
	Dir string
}

func NewGitVCS(dir string) *GitVCS {
	return &GitVCS{Dir: dir}
}

func (g *GitVCS) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return "", diagnostics.New("RK-GIT", classifyGitError(err), fmt.Sprintf("git %s failed", strings.Join(args, " ")), "check the worktree and git remote configuration", fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func classifyGitError(err error) diagnostics.Class {
	var exitErr *exec.ExitError
	if eerr, ok := err.(*exec.ExitError); ok {
		exitErr = eerr
	}
	if exitErr != nil {
		// Most git failures in our usage (bad ref, dirty tree, missing tag)
		// are permanent; network operations are the exception (push/fetch).
		return diagnostics.ClassPermanent
	}
	return diagnostics.ClassVCSTransient
}

func (g *GitVCS) IsClean(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out == "", nil
}

func (g *GitVCS) IsShallow(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "rev-parse", "--is-shallow-repository")
	if err != nil {
		return false, err
	}
	return out == "true", nil
}

func (g *GitVCS) CurrentSHA(ctx context.Context) (SHA, error) {
	out, err := g.run(ctx, "rev-parse", "HEAD")
	return SHA(out), err
}

func (g *GitVCS) CurrentBranch(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

func (g *GitVCS) Log(ctx context.Context, sinceTag string, paths []string) ([]Commit, error) {
	revRange := "HEAD"
	if sinceTag != "" {
		revRange = sinceTag + "..HEAD"
	}

	const sep = "\x1f"
	const recordSep = "\x1e"
	format := "%H" + sep + "%an" + sep + "%aI" + sep + "%s" + sep + "%B" + recordSep

	args := []string{"log", revRange, "--pretty=format:" + format}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var commits []Commit
	for _, rec := range strings.Split(out, recordSep) {
		rec = strings.Trim(rec, "\n")
		if rec == "" {
			continue
		}
		fields := strings.SplitN(rec, sep, 5)
		if len(fields) < 5 {
			continue
		}
		authorDate, _ := time.Parse(time.RFC3339, fields[2])
		commits = append(commits, Commit{
			SHA:        SHA(fields[0]),
			Author:     fields[1],
			AuthorDate: authorDate,
			Subject:    fields[3],
			Message:    fields[4],
		})
	}
	return commits, nil
}

func (g *GitVCS) Diff(ctx context.Context, sha SHA) ([]string, error) {
	out, err := g.run(ctx, "diff", "--name-only", string(sha)+"^", string(sha))
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func (g *GitVCS) Commit(ctx context.Context, paths []string, message string) (SHA, error) {
	args := append([]string{"add"}, paths...)
	if _, err := g.run(ctx, args...); err != nil {
		return "", err
	}
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}
	return g.CurrentSHA(ctx)
}

func (g *GitVCS) Tag(ctx context.Context, name, annotatedMessage string) error {
	_, err := g.run(ctx, "tag", "-a", name, "-m", annotatedMessage)
	return err
}

func (g *GitVCS) TagExists(ctx context.Context, name string) (bool, error) {
	out, err := g.run(ctx, "tag", "-l", name)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == name, nil
}

func (g *GitVCS) ListTags(ctx context.Context, pattern string) ([]string, error) {
	args := []string{"tag", "-l"}
	if pattern != "" {
		args = append(args, pattern)
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func (g *GitVCS) Push(ctx context.Context, ref string, force bool) error {
	args := []string{"push", "origin", ref}
	if force {
		args = append(args, "--force")
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// Pushes fail transiently (races, remote hiccups) far more often
		// than they fail permanently, so classify distinctly from run().
		return diagnostics.New("RK-GIT-PUSH", diagnostics.ClassVCSTransient, fmt.Sprintf("git push %s failed", ref), "retry; check network connectivity to the remote", fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return nil
}

func (g *GitVCS) Checkout(ctx context.Context, ref string) error {
	_, err := g.run(ctx, "checkout", ref)
	return err
}

func (g *GitVCS) CherryPick(ctx context.Context, sha SHA) error {
	_, err := g.run(ctx, "cherry-pick", string(sha))
	return err
}

// CommitsAhead is a small helper used by pre-flight checks (§4.G), grounded
// on the teacher's cmd/workspace_status.go `git rev-list --count` pattern.
func (g *GitVCS) CommitsAhead(ctx context.Context, upstream string) (int, error) {
	out, err := g.run(ctx, "rev-list", "--count", upstream+"..HEAD")
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(out)
	if convErr != nil {
		return 0, fmt.Errorf("parsing rev-list count %q: %w", out, convErr)
	}
	return n, nil
}
