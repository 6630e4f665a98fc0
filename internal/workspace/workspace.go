// Package workspace installs Luna's agent files into a .github directory
// without overwriting anything the user has changed.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// Target kinds accepted by ResolveTarget.
const (
	TargetHome      = "home"
	TargetWorkspace = "workspace"
)

// DefaultExcludes are skipped by CopyDir unless Options.Exclude is set.
var DefaultExcludes = []string{"**/.DS_Store"}

// Options controls CopyDir.
type Options struct {
	// Exclude holds doublestar patterns matched against paths relative to
	// the source root, using forward slashes.
	Exclude []string
	// DryRun counts what would be copied without writing.
	DryRun bool
}

// Result counts files handled by CopyDir.
type Result struct {
	Copied  int `json:"copied"`
	Skipped int `json:"skipped"`
}

// Message returns the user-facing summary for a completed copy.
func (r Result) Message() string {
	if r.Copied > 0 {
		return fmt.Sprintf("Luna workspace setup complete! %d files added/updated, %d files already up-to-date.", r.Copied, r.Skipped)
	}
	return fmt.Sprintf("Luna workspace is already up-to-date! All %d files are current.", r.Skipped)
}

// ResolveTarget returns the .github directory for the given kind.
func ResolveTarget(kind, home, cwd string) (string, error) {
	switch kind {
	case TargetHome, "":
		if home == "" {
			return "", errors.New("unable to determine user home directory")
		}
		return filepath.Join(home, ".github"), nil
	case TargetWorkspace:
		if cwd == "" {
			return "", errors.New("no workspace folder")
		}
		return filepath.Join(cwd, ".github"), nil
	default:
		return "", fmt.Errorf("unknown target %q (want %q or %q)", kind, TargetHome, TargetWorkspace)
	}
}

// DisplayTarget is the short form of a target used in prompts.
func DisplayTarget(kind string) string {
	if kind == TargetWorkspace {
		return "./.github"
	}
	return "~/.github"
}

// CopyDir copies src into dst recursively. A file is written when it is
// missing at the destination or the source is newer; otherwise it is
// skipped. Existing destination files are never removed.
func CopyDir(fs afero.Fs, src, dst string, opts Options) (Result, error) {
	excludes := opts.Exclude
	if excludes == nil {
		excludes = DefaultExcludes
	}
	for _, p := range excludes {
		if !doublestar.ValidatePattern(p) {
			return Result{}, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	info, err := fs.Stat(src)
	if err != nil {
		return Result{}, fmt.Errorf("source %s: %w", src, err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("source %s is not a directory", src)
	}

	c := copier{fs: fs, root: src, excludes: excludes, dryRun: opts.DryRun}
	err = c.copyDir(src, dst)
	return c.result, err
}

type copier struct {
	fs       afero.Fs
	root     string
	excludes []string
	dryRun   bool
	result   Result
}

func (c *copier) excluded(path string) bool {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range c.excludes {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (c *copier) copyDir(src, dst string) error {
	if !c.dryRun {
		if err := c.fs.MkdirAll(dst, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dst, err)
		}
	}

	entries, err := afero.ReadDir(c.fs, src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if c.excluded(srcPath) {
			continue
		}

		if entry.IsDir() {
			if err := c.copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}

		dstInfo, err := c.fs.Stat(dstPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return fmt.Errorf("stat %s: %w", dstPath, err)
		case !entry.ModTime().After(dstInfo.ModTime()):
			c.result.Skipped++
			continue
		}

		if !c.dryRun {
			if err := c.copyFile(srcPath, dstPath, entry.Mode()); err != nil {
				return err
			}
		}
		c.result.Copied++
	}
	return nil
}

func (c *copier) copyFile(src, dst string, mode os.FileMode) error {
	data, err := afero.ReadFile(c.fs, src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := afero.WriteFile(c.fs, dst, data, mode.Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}

// CountFiles returns the number of regular files under dir. A missing
// directory counts as zero.
func CountFiles(fs afero.Fs, dir string) (int, error) {
	exists, err := afero.DirExists(fs, dir)
	if err != nil || !exists {
		return 0, err
	}
	n := 0
	err = afero.Walk(fs, dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			n++
		}
		return nil
	})
	return n, err
}
