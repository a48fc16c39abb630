package changelog_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spencerx/releasekit/internal/changelog"
	"github.com/Spencerx/releasekit/internal/commit"
)

func TestRenderSectionGroupsByCanonicalOrder(t *testing.T) {
	commits := []commit.Parsed{
		commit.Parse("1111111", "alice", "fix: correct off-by-one (#12)"),
		commit.Parse("2222222", "bob", "feat!: drop legacy config format"),
		commit.Parse("3333333", "carol", "perf: avoid redundant allocation"),
		commit.Parse("4444444", "dave", "chore: bump deps"),
	}

	out := changelog.RenderSection("core", "1.1.0", commits, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))

	breakingIdx := indexOf(out, "### Breaking Changes")
	fixesIdx := indexOf(out, "### Bug Fixes")
	perfIdx := indexOf(out, "### Performance")
	otherIdx := indexOf(out, "### Other")

	require.NotEqual(t, -1, breakingIdx)
	require.NotEqual(t, -1, fixesIdx)
	require.NotEqual(t, -1, perfIdx)
	require.NotEqual(t, -1, otherIdx)
	assert.Less(t, breakingIdx, fixesIdx)
	assert.Less(t, fixesIdx, perfIdx)
	assert.Less(t, perfIdx, otherIdx)
	assert.Contains(t, out, "(#12)")
}

func TestRenderSectionNoCommitsIsExplicit(t *testing.T) {
	out := changelog.RenderSection("core", "1.0.1", nil, time.Now())
	assert.Contains(t, out, "No user-facing changes")
}

func TestUpdateFilePreservesHistoricalSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CHANGELOG.md")
	historical := "# Changelog\n\n" + changelog.Marker + "\n\n## 1.0.0 (2025-01-01)\n\nold stuff\n"
	require.NoError(t, os.WriteFile(path, []byte(historical), 0644))

	require.NoError(t, changelog.UpdateFile(path, "## 1.1.0 (2026-01-15)\n\nnew stuff\n\n"))

	updated, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(updated)

	assert.Contains(t, content, "new stuff")
	assert.Contains(t, content, "old stuff")
	assert.Less(t, indexOf(content, "new stuff"), indexOf(content, "old stuff"))
}

func TestUpdateFileCreatesMarkerWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "CHANGELOG.md")
	require.NoError(t, changelog.UpdateFile(path, "## 1.0.0\n\nfirst release\n\n"))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), changelog.Marker)
	assert.Contains(t, string(content), "first release")
}

func TestUmbrellaAggregatesInNameOrder(t *testing.T) {
	out := changelog.Umbrella(map[string]string{
		"zeta":  "zeta notes\n",
		"alpha": "alpha notes\n",
	})
	assert.Less(t, indexOf(out, "alpha notes"), indexOf(out, "zeta notes"))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
