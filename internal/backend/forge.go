package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/Spencerx/releasekit/internal/diagnostics"
)

// styled status lines mirror the teacher's pkg/gh/client.go, which defines
// the same lipgloss styles for exec-wrapped gh/git output.
var (
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)

// GHForge implements Forge by shelling out to the `gh` CLI, grounded
// directly on the teacher's pkg/gh/client.go (`exec.Command("gh", "pr",
// "list", ...)`, `exec.Command("gh", "run", "list", ...)`).
type GHForge struct {
	Dir   string
	Owner string
	Repo  string
}

func NewGHForge(dir, owner, repo string) *GHForge {
	return &GHForge{Dir: dir, Owner: owner, Repo: repo}
}

func (f *GHForge) slug() string {
	return fmt.Sprintf("%s/%s", f.Owner, f.Repo)
}

func (f *GHForge) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "gh", append(args, "--repo", f.slug())...)
	cmd.Dir = f.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", diagnostics.New("RK-FORGE", diagnostics.ClassForgeTransient, fmt.Sprintf("gh %s failed", strings.Join(args, " ")), "check gh auth status and rate limits", fmt.Errorf("%w: %s", err, stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (f *GHForge) IsAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "gh", "auth", "status")
	cmd.Dir = f.Dir
	if err := cmd.Run(); err != nil {
		fmt.Println(warningStyle.Render("gh CLI is not authenticated; forge operations will be skipped"))
		return false
	}
	return true
}

func (f *GHForge) CreatePR(ctx context.Context, branch, base, title, body string, labels []string) (PRHandle, error) {
	args := []string{"pr", "create", "--head", branch, "--base", base, "--title", title, "--body", body}
	for _, l := range labels {
		args = append(args, "--label", l)
	}
	out, err := f.run(ctx, args...)
	if err != nil {
		return PRHandle{}, err
	}
	return PRHandle{URL: out, Number: parsePRNumberFromURL(out)}, nil
}

func (f *GHForge) UpdatePR(ctx context.Context, handle PRHandle, body string, labels []string) error {
	args := []string{"pr", "edit", strconv.Itoa(handle.Number), "--body", body}
	for _, l := range labels {
		args = append(args, "--add-label", l)
	}
	_, err := f.run(ctx, args...)
	return err
}

type ghPRListItem struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

func (f *GHForge) ListPRs(ctx context.Context, label string, state PRState) ([]PRHandle, error) {
	args := []string{"pr", "list", "--json", "number,url"}
	if label != "" {
		args = append(args, "--label", label)
	}
	if state != "" {
		args = append(args, "--state", string(state))
	}
	out, err := f.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	var items []ghPRListItem
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		return nil, diagnostics.New("RK-FORGE-PARSE", diagnostics.ClassForgeTransient, "failed to parse gh pr list output", "", err)
	}
	handles := make([]PRHandle, len(items))
	for i, it := range items {
		handles[i] = PRHandle{Number: it.Number, URL: it.URL}
	}
	return handles, nil
}

type ghPRBody struct {
	Body string `json:"body"`
}

func (f *GHForge) GetPRBody(ctx context.Context, handle PRHandle) (string, error) {
	out, err := f.run(ctx, "pr", "view", strconv.Itoa(handle.Number), "--json", "body")
	if err != nil {
		return "", err
	}
	var b ghPRBody
	if err := json.Unmarshal([]byte(out), &b); err != nil {
		return "", diagnostics.New("RK-FORGE-PARSE", diagnostics.ClassForgeTransient, "failed to parse gh pr view output", "", err)
	}
	return b.Body, nil
}

func (f *GHForge) MergePR(ctx context.Context, handle PRHandle) error {
	_, err := f.run(ctx, "pr", "merge", strconv.Itoa(handle.Number), "--squash")
	return err
}

func (f *GHForge) CreateRelease(ctx context.Context, tag, name, body string, draft, prerelease bool) (ReleaseHandle, error) {
	args := []string{"release", "create", tag, "--title", name, "--notes", body}
	if draft {
		args = append(args, "--draft")
	}
	if prerelease {
		args = append(args, "--prerelease")
	}
	out, err := f.run(ctx, args...)
	if err != nil {
		return ReleaseHandle{}, err
	}
	fmt.Println(successStyle.Render("created release " + tag))
	return ReleaseHandle{URL: out}, nil
}

func (f *GHForge) AddLabels(ctx context.Context, handle PRHandle, labels []string) error {
	args := []string{"pr", "edit", strconv.Itoa(handle.Number)}
	for _, l := range labels {
		args = append(args, "--add-label", l)
	}
	_, err := f.run(ctx, args...)
	return err
}

func (f *GHForge) RemoveLabels(ctx context.Context, handle PRHandle, labels []string) error {
	args := []string{"pr", "edit", strconv.Itoa(handle.Number)}
	for _, l := range labels {
		args = append(args, "--remove-label", l)
	}
	_, err := f.run(ctx, args...)
	return err
}

func (f *GHForge) RepositoryDispatch(ctx context.Context, eventType string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling dispatch payload: %w", err)
	}
	args := []string{"api", fmt.Sprintf("repos/%s/dispatches", f.slug()), "--method", "POST",
		"-f", "event_type=" + eventType, "-f", "client_payload=" + string(body)}
	_, err = f.run(ctx, args...)
	return err
}

func parsePRNumberFromURL(url string) int {
	idx := strings.LastIndex(url, "/")
	if idx < 0 || idx == len(url)-1 {
		return 0
	}
	n, _ := strconv.Atoi(url[idx+1:])
	return n
}
