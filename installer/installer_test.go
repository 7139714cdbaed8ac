package installer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lntools/reckless/conf"
	"github.com/lntools/reckless/plugin"
	"github.com/lntools/reckless/resolve"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

const passingEntry = "#!/bin/sh\nexit 0\n"
const failingEntry = "#!/bin/sh\necho 'missing module pyln' >&2\nexit 1\n"

// fixtureRepo builds a local git repository holding the given files and
// returns its path and head commit hash.
func fixtureRepo(t *testing.T, files map[string]string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	hash := commitFiles(t, repo, dir, files, "plugin import")
	return dir, hash
}

func commitFiles(t *testing.T, repo *git.Repository, dir string, files map[string]string, msg string) string {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		full := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0755))
		_, err = wt.Add(name)
		require.NoError(t, err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

// fakeTool puts a stub executable on PATH, replacing it entirely so the real
// pip never runs.
func fakeTool(t *testing.T, name, script string) {
	t.Helper()
	bin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bin, name), []byte("#!/bin/sh\n"+script), 0755))
	t.Setenv("PATH", bin)
}

func testSettings(t *testing.T) *conf.Settings {
	return &conf.Settings{
		LightningDir: t.TempDir(),
		RecklessDir:  filepath.Join(t.TempDir(), "reckless"),
		Network:      "bitcoin",
	}
}

// isolateTempDir points staging at a fresh directory so leftovers are
// observable.
func isolateTempDir(t *testing.T) string {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	return tmp
}

func TestInstallSuccess(t *testing.T) {
	tmp := isolateTempDir(t)
	fakeTool(t, "pip3", "exit 0")
	repoDir, _ := fixtureRepo(t, map[string]string{
		"myplugin.py":      passingEntry,
		"requirements.txt": "pyln-client\n",
	})
	settings := testSettings(t)
	desc := &resolve.Descriptor{
		Name:       "myplugin",
		Repo:       repoDir,
		Entrypoint: "myplugin.py",
		DepKind:    resolve.DepRequirements,
	}

	dest, err := Install(context.Background(), testLogger(), settings, desc)
	require.NoError(t, err)
	assert.Equal(t, settings.PluginDir("myplugin"), dest)
	assert.FileExists(t, filepath.Join(dest, "myplugin.py"))

	meta, err := plugin.ReadMetadata(dest)
	require.NoError(t, err)
	assert.Equal(t, "myplugin", meta.Name)
	assert.Equal(t, repoDir, meta.Source)
	assert.Equal(t, "myplugin.py", meta.Entrypoint)
	assert.False(t, meta.InstalledAt.IsZero())

	// Staging is reclaimed on success.
	leftovers, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestInstallFromSubdirectory(t *testing.T) {
	isolateTempDir(t)
	fakeTool(t, "pip3", "exit 0")
	repoDir, _ := fixtureRepo(t, map[string]string{
		"sumary/sumary.py":        passingEntry,
		"sumary/requirements.txt": "",
		"other/other.py":          passingEntry,
	})
	settings := testSettings(t)
	desc := &resolve.Descriptor{
		Name:       "sumary",
		Repo:       repoDir,
		Entrypoint: "sumary.py",
		DepKind:    resolve.DepRequirements,
		Subdir:     "sumary",
	}

	dest, err := Install(context.Background(), testLogger(), settings, desc)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dest, "sumary.py"))
	// Only the subdirectory is committed.
	assert.NoFileExists(t, filepath.Join(dest, "other", "other.py"))
}

func TestInstallPinnedRevision(t *testing.T) {
	isolateTempDir(t)
	fakeTool(t, "pip3", "exit 0")
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	first := commitFiles(t, repo, dir, map[string]string{
		"foo.py":           passingEntry,
		"requirements.txt": "v1\n",
	}, "v1")
	commitFiles(t, repo, dir, map[string]string{
		"requirements.txt": "v2\n",
	}, "v2")

	settings := testSettings(t)
	desc := &resolve.Descriptor{
		Name:       "foo",
		Repo:       dir,
		Entrypoint: "foo.py",
		DepKind:    resolve.DepRequirements,
		Revision:   first,
	}

	dest, err := Install(context.Background(), testLogger(), settings, desc)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "requirements.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1\n", string(data))

	meta, err := plugin.ReadMetadata(dest)
	require.NoError(t, err)
	assert.Equal(t, first, meta.Revision)
}

func TestInstallUnknownRevision(t *testing.T) {
	isolateTempDir(t)
	fakeTool(t, "pip3", "exit 0")
	repoDir, _ := fixtureRepo(t, map[string]string{
		"foo.py":           passingEntry,
		"requirements.txt": "",
	})
	settings := testSettings(t)
	desc := &resolve.Descriptor{
		Name:       "foo",
		Repo:       repoDir,
		Entrypoint: "foo.py",
		DepKind:    resolve.DepRequirements,
		Revision:   "no-such-tag",
	}

	_, err := Install(context.Background(), testLogger(), settings, desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-tag")
	assert.NoDirExists(t, settings.PluginDir("foo"))
}

func TestSmokeTestFailureLeavesNothingBehind(t *testing.T) {
	tmp := isolateTempDir(t)
	fakeTool(t, "pip3", "exit 0")
	repoDir, _ := fixtureRepo(t, map[string]string{
		"bad.py":           failingEntry,
		"requirements.txt": "",
	})
	settings := testSettings(t)
	desc := &resolve.Descriptor{
		Name:       "bad",
		Repo:       repoDir,
		Entrypoint: "bad.py",
		DepKind:    resolve.DepRequirements,
	}

	_, err := Install(context.Background(), testLogger(), settings, desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smoke test")
	assert.Contains(t, err.Error(), "missing module pyln")

	assert.NoDirExists(t, settings.PluginDir("bad"))
	leftovers, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDependencyInstallFailure(t *testing.T) {
	isolateTempDir(t)
	fakeTool(t, "pip3", "echo 'resolution impossible' \nexit 1")
	repoDir, _ := fixtureRepo(t, map[string]string{
		"foo.py":           passingEntry,
		"requirements.txt": "ancient-package\n",
	})
	settings := testSettings(t)
	desc := &resolve.Descriptor{
		Name:       "foo",
		Repo:       repoDir,
		Entrypoint: "foo.py",
		DepKind:    resolve.DepRequirements,
	}

	_, err := Install(context.Background(), testLogger(), settings, desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency install failed")
	assert.NoDirExists(t, settings.PluginDir("foo"))
}

func TestMissingInstallerToolIsEnvironmentError(t *testing.T) {
	isolateTempDir(t)
	t.Setenv("PATH", t.TempDir())
	repoDir, _ := fixtureRepo(t, map[string]string{
		"foo.py":           passingEntry,
		"requirements.txt": "",
	})
	settings := testSettings(t)
	desc := &resolve.Descriptor{
		Name:       "foo",
		Repo:       repoDir,
		Entrypoint: "foo.py",
		DepKind:    resolve.DepRequirements,
	}

	_, err := Install(context.Background(), testLogger(), settings, desc)
	require.Error(t, err)

	var envErr *EnvironmentError
	require.True(t, errors.As(err, &envErr))
	assert.Contains(t, envErr.Error(), "pip3")
}

func TestInstallRefusesExistingPlugin(t *testing.T) {
	settings := testSettings(t)
	require.NoError(t, os.MkdirAll(settings.PluginDir("foo"), 0755))
	desc := &resolve.Descriptor{Name: "foo", Repo: t.TempDir()}

	_, err := Install(context.Background(), testLogger(), settings, desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already installed")
}

func TestPreflightUnreachableRepository(t *testing.T) {
	isolateTempDir(t)
	settings := testSettings(t)
	desc := &resolve.Descriptor{
		Name:       "foo",
		Repo:       filepath.Join(t.TempDir(), "does-not-exist"),
		Entrypoint: "foo.py",
		DepKind:    resolve.DepRequirements,
	}

	_, err := Install(context.Background(), testLogger(), settings, desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
	assert.NoDirExists(t, settings.PluginDir("foo"))
}
