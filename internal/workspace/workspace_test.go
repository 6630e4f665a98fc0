package workspace

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	past   = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	recent = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
)

func writeAt(t *testing.T, fs afero.Fs, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	require.NoError(t, fs.Chtimes(path, mtime, mtime))
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func seedSource(t *testing.T, fs afero.Fs) {
	writeAt(t, fs, "/src/agents/luna.agent.md", "luna v2", recent)
	writeAt(t, fs, "/src/agents/researcher.agent.md", "researcher", recent)
	writeAt(t, fs, "/src/skills/deploy/SKILL.md", "deploy", recent)
	writeAt(t, fs, "/src/copilot-instructions.md", "instructions", recent)
}

func TestCopyDir_FreshTarget(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)

	res, err := CopyDir(fs, "/src", "/home/u/.github", Options{})
	require.NoError(t, err)
	assert.Equal(t, Result{Copied: 4}, res)
	assert.Equal(t, "deploy", readFile(t, fs, "/home/u/.github/skills/deploy/SKILL.md"))
	assert.Equal(t, "luna v2", readFile(t, fs, "/home/u/.github/agents/luna.agent.md"))
}

func TestCopyDir_NonDestructive(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)

	// Older copy gets updated.
	writeAt(t, fs, "/dst/agents/luna.agent.md", "luna v1", past)
	// User-edited file newer than the source is kept.
	writeAt(t, fs, "/dst/copilot-instructions.md", "my edits", recent.Add(time.Hour))
	// Files unknown to the source are left alone.
	writeAt(t, fs, "/dst/agents/custom.agent.md", "custom", past)

	res, err := CopyDir(fs, "/src", "/dst", Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Copied)
	assert.Equal(t, 1, res.Skipped)

	assert.Equal(t, "luna v2", readFile(t, fs, "/dst/agents/luna.agent.md"))
	assert.Equal(t, "my edits", readFile(t, fs, "/dst/copilot-instructions.md"))
	assert.Equal(t, "custom", readFile(t, fs, "/dst/agents/custom.agent.md"))
}

func TestCopyDir_SecondRunSkipsEverything(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)

	_, err := CopyDir(fs, "/src", "/dst", Options{})
	require.NoError(t, err)

	res, err := CopyDir(fs, "/src", "/dst", Options{})
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 4}, res)
	assert.Contains(t, res.Message(), "All 4 files are current")
}

func TestCopyDir_EqualMtimeSkips(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeAt(t, fs, "/src/a.md", "new", recent)
	writeAt(t, fs, "/dst/a.md", "old", recent)

	res, err := CopyDir(fs, "/src", "/dst", Options{})
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 1}, res)
	assert.Equal(t, "old", readFile(t, fs, "/dst/a.md"))
}

func TestCopyDir_Excludes(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	writeAt(t, fs, "/src/.DS_Store", "junk", recent)
	writeAt(t, fs, "/src/agents/.DS_Store", "junk", recent)

	res, err := CopyDir(fs, "/src", "/dst", Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Copied)
	exists, _ := afero.Exists(fs, "/dst/agents/.DS_Store")
	assert.False(t, exists)

	res, err = CopyDir(fs, "/src", "/dst2", Options{Exclude: []string{"skills/**"}})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Copied)
	exists, _ = afero.Exists(fs, "/dst2/skills/deploy/SKILL.md")
	assert.False(t, exists)
}

func TestCopyDir_InvalidPattern(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)
	_, err := CopyDir(fs, "/src", "/dst", Options{Exclude: []string{"[unclosed"}})
	assert.ErrorContains(t, err, "invalid exclude pattern")
}

func TestCopyDir_DryRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	seedSource(t, fs)

	res, err := CopyDir(fs, "/src", "/dst", Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Copied)
	exists, _ := afero.Exists(fs, "/dst")
	assert.False(t, exists)
}

func TestCopyDir_SourceErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := CopyDir(fs, "/missing", "/dst", Options{})
	assert.Error(t, err)

	writeAt(t, fs, "/file.txt", "x", past)
	_, err = CopyDir(fs, "/file.txt", "/dst", Options{})
	assert.ErrorContains(t, err, "not a directory")
}

func TestCountFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	n, err := CountFiles(fs, "/nothing")
	require.NoError(t, err)
	assert.Zero(t, n)

	seedSource(t, fs)
	n, err = CountFiles(fs, "/src")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestResolveTarget(t *testing.T) {
	got, err := ResolveTarget(TargetHome, "/home/u", "/work")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/u", ".github"), got)

	got, err = ResolveTarget(TargetWorkspace, "/home/u", "/work")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/work", ".github"), got)

	_, err = ResolveTarget(TargetHome, "", "/work")
	assert.Error(t, err)
	_, err = ResolveTarget(TargetWorkspace, "/home/u", "")
	assert.Error(t, err)
	_, err = ResolveTarget("elsewhere", "/home/u", "/work")
	assert.ErrorContains(t, err, "unknown target")
}

func TestDisplayTarget(t *testing.T) {
	assert.Equal(t, "~/.github", DisplayTarget(TargetHome))
	assert.Equal(t, "./.github", DisplayTarget(TargetWorkspace))
}

func TestResultMessage(t *testing.T) {
	assert.Equal(t, "Luna workspace setup complete! 2 files added/updated, 1 files already up-to-date.", Result{Copied: 2, Skipped: 1}.Message())
}
