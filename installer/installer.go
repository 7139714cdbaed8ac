// Package installer executes one installation attempt: clone into staging,
// pin a revision, install dependencies, smoke-test the entry point, then
// commit to the permanent plugin directory. The commit copy is the only step
// allowed to touch the permanent location; staging is always reclaimed.
package installer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/lntools/reckless/conf"
	"github.com/lntools/reckless/plugin"
	"github.com/lntools/reckless/resolve"
)

// EnvironmentError means a required tool is missing from the machine. It is
// fatal and distinct from a failure of the single install attempt.
type EnvironmentError struct {
	Tools []string
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("no dependency installer found; need one of %s on PATH", strings.Join(e.Tools, ", "))
}

// installerTools is the acceptable dependency installers in preference order.
var installerTools = []string{"pip3", "pip"}

// Install runs the full pipeline for one descriptor and returns the
// permanent plugin directory. Any failure before the final copy leaves the
// permanent location untouched.
func Install(ctx context.Context, logger *log.Logger, settings *conf.Settings, desc *resolve.Descriptor) (string, error) {
	dest := settings.PluginDir(desc.Name)
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("plugin %s is already installed at %s", desc.Name, dest)
	}

	if err := preflight(ctx, desc.Repo); err != nil {
		return "", fmt.Errorf("repository %s unreachable: %w", desc.Repo, err)
	}

	staging, err := os.MkdirTemp("", "reckless-"+desc.Name+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)
	logger.Debug("Staging install", "plugin", desc.Name, "dir", staging)

	if err := clone(ctx, logger, desc, staging); err != nil {
		return "", err
	}

	root := staging
	if desc.Subdir != "" {
		root = filepath.Join(staging, filepath.FromSlash(desc.Subdir))
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			return "", fmt.Errorf("subdirectory %s missing from cloned repository", desc.Subdir)
		}
	}

	pip, err := findInstallerTool()
	if err != nil {
		return "", err
	}

	if err := installDeps(ctx, logger, pip, root, desc); err != nil {
		return "", err
	}

	if err := smokeTest(ctx, logger, root, desc.Entrypoint); err != nil {
		return "", err
	}

	// Sole commit point. A partial copy is rolled back.
	if err := copyDir(root, dest); err != nil {
		os.RemoveAll(dest)
		return "", fmt.Errorf("failed to copy plugin into place: %w", err)
	}
	meta := &plugin.Metadata{
		Name:        desc.Name,
		Source:      desc.Repo,
		Entrypoint:  desc.Entrypoint,
		Revision:    desc.Revision,
		Subdir:      desc.Subdir,
		InstalledAt: time.Now().UTC(),
	}
	if err := plugin.WriteMetadata(dest, meta); err != nil {
		os.RemoveAll(dest)
		return "", err
	}

	logger.Info("Plugin installed", "name", desc.Name, "path", dest)
	return dest, nil
}

// preflight verifies the repository answers before a full clone is
// attempted. Local paths only need to exist.
func preflight(ctx context.Context, repo string) error {
	if info, err := os.Stat(repo); err == nil && info.IsDir() {
		return nil
	}
	rem := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{repo},
	})
	_, err := rem.ListContext(ctx, &git.ListOptions{})
	return err
}

func clone(ctx context.Context, logger *log.Logger, desc *resolve.Descriptor, staging string) error {
	opts := &git.CloneOptions{URL: desc.Repo}
	logger.Debug("Cloning repository", "url", desc.Repo, "revision", desc.Revision)

	repo, err := git.PlainCloneContext(ctx, staging, false, opts)
	if err != nil {
		return fmt.Errorf("clone of %s failed: %w", desc.Repo, err)
	}

	if desc.Revision != "" {
		hash, err := repo.ResolveRevision(plumbing.Revision(desc.Revision))
		if err != nil {
			// Branch names resolve through the remote-tracking ref after
			// a fresh clone.
			hash, err = repo.ResolveRevision(plumbing.Revision("origin/" + desc.Revision))
		}
		if err != nil {
			return fmt.Errorf("revision %s not found in %s: %w", desc.Revision, desc.Repo, err)
		}
		wt, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to open worktree: %w", err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash}); err != nil {
			return fmt.Errorf("checkout of %s failed: %w", desc.Revision, err)
		}
	}
	return nil
}

// findInstallerTool locates a dependency installer. Absence is an
// environment problem, not a failure of this install.
func findInstallerTool() (string, error) {
	for _, tool := range installerTools {
		if path, err := exec.LookPath(tool); err == nil {
			return path, nil
		}
	}
	return "", &EnvironmentError{Tools: installerTools}
}

func installDeps(ctx context.Context, logger *log.Logger, pip, root string, desc *resolve.Descriptor) error {
	var args []string
	switch desc.DepKind {
	case resolve.DepRequirements:
		args = []string{"install", "-r", "requirements.txt"}
	case resolve.DepPyproject:
		args = []string{"install", "-e", "."}
	default:
		return fmt.Errorf("no dependency descriptor resolved for %s", desc.Name)
	}

	cmd := exec.CommandContext(ctx, pip, args...)
	cmd.Dir = root
	output, err := cmd.CombinedOutput()
	logger.Debug("Dependency install output", "tool", pip, "output", strings.TrimSpace(string(output)))
	if err != nil {
		return fmt.Errorf("dependency install failed: %w", err)
	}
	return nil
}

// smokeTest runs the entry point standalone with stdin closed. A plugin that
// cannot run to a clean exit is never committed.
func smokeTest(ctx context.Context, logger *log.Logger, root, entrypoint string) error {
	path := filepath.Join(root, entrypoint)
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("failed to mark entry point executable: %w", err)
	}

	cmd := exec.CommandContext(ctx, path)
	cmd.Dir = root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("Smoke testing entry point", "path", path)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("entry point %s failed smoke test: %v: %s",
			entrypoint, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func copyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, srcInfo.Mode()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
		} else {
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode())
}
