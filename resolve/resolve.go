// Package resolve turns a plugin name and an ordered source list into an
// installation descriptor by walking repository listings on the hosting API.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v39/github"
	"golang.org/x/oauth2"

	"github.com/lntools/reckless/source"
)

// ErrNotFound is returned once every source has been searched without a
// fully resolved candidate.
var ErrNotFound = errors.New("plugin not found in any configured source")

// UnsupportedError marks a plugin that was located but uses an entry-point
// convention reckless cannot install. It names the detected kind instead of
// silently rejecting the candidate, and it aborts the search.
type UnsupportedError struct {
	Name string
	Kind string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("plugin %s found, but %s plugins are not supported", e.Name, e.Kind)
}

// DepKind identifies the dependency descriptor found next to an entry point.
type DepKind int

const (
	DepNone DepKind = iota
	DepRequirements
	DepPyproject
)

func (k DepKind) String() string {
	switch k {
	case DepRequirements:
		return "requirements"
	case DepPyproject:
		return "pyproject"
	default:
		return "none"
	}
}

// Descriptor is everything the installer needs for one attempt. It is built
// here, consumed once, and discarded.
type Descriptor struct {
	Name       string
	Repo       string // clone URL or local path
	Owner      string
	RepoName   string
	Entrypoint string
	DepKind    DepKind
	Subdir     string
	Revision   string
}

// Resolver queries the hosting API. The zero client is unauthenticated;
// GITHUB_TOKEN is picked up when present to stretch rate limits.
type Resolver struct {
	client *github.Client
}

func New() *Resolver {
	var hc *http.Client
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(context.Background(), ts)
	}
	return &Resolver{client: github.NewClient(hc)}
}

// NewWithClient injects a preconfigured API client, used by tests to point
// at a local server.
func NewWithClient(client *github.Client) *Resolver {
	return &Resolver{client: client}
}

// Search probes each source in priority order and returns the first fully
// resolved descriptor: one with both an entry point and a dependency
// descriptor. A source that is unreachable, unparseable or incomplete is
// skipped; an unsupported entry-point kind aborts the search explicitly.
func (r *Resolver) Search(ctx context.Context, logger *log.Logger, name string, sources []string) (*Descriptor, error) {
	for _, src := range sources {
		desc, err := r.searchSource(ctx, logger, name, src)
		if err != nil {
			var unsupported *UnsupportedError
			if errors.As(err, &unsupported) {
				return nil, err
			}
			logger.Debug("Source skipped", "source", src, "reason", err)
			continue
		}
		logger.Debug("Resolved plugin", "name", name, "source", src,
			"repo", desc.Repo, "entrypoint", desc.Entrypoint, "deps", desc.DepKind.String())
		return desc, nil
	}
	return nil, ErrNotFound
}

func (r *Resolver) searchSource(ctx context.Context, logger *log.Logger, name, src string) (*Descriptor, error) {
	if info, err := os.Stat(src); err == nil && info.IsDir() {
		// Local directory sources are registered but not searchable yet.
		return nil, fmt.Errorf("local sources are not searchable")
	}

	loc, err := parseGitHubURL(src)
	if err != nil {
		return nil, err
	}

	cand := *loc
	if !strings.EqualFold(loc.repo, name) {
		entries, err := r.list(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("source unavailable: %w", err)
		}
		entry := findEntry(entries, name)
		if entry == nil {
			return nil, fmt.Errorf("no entry named %s", name)
		}
		if isDefaultCollection(src) {
			// A match inside the default collection is a subdirectory of
			// that same repository.
			cand.subdir = entry.GetPath()
		} else {
			next, err := parseGitHubURL(entry.GetHTMLURL())
			if err != nil {
				return nil, err
			}
			cand = *next
		}
	}

	entries, err := r.list(ctx, &cand)
	if err != nil {
		return nil, fmt.Errorf("source unavailable: %w", err)
	}

	entrypoint, err := findEntrypoint(entries, name)
	if err != nil {
		return nil, err
	}
	if entrypoint == "" {
		return nil, fmt.Errorf("no entry point for %s", name)
	}

	depKind := findDepKind(entries)
	if depKind == DepNone {
		return nil, fmt.Errorf("no dependency descriptor next to %s", entrypoint)
	}

	return &Descriptor{
		Name:       name,
		Repo:       cand.cloneURL(),
		Owner:      cand.owner,
		RepoName:   cand.repo,
		Entrypoint: entrypoint,
		DepKind:    depKind,
		Subdir:     cand.subdir,
		Revision:   cand.revision,
	}, nil
}

func (r *Resolver) list(ctx context.Context, loc *location) ([]*github.RepositoryContent, error) {
	opts := &github.RepositoryContentGetOptions{Ref: loc.revision}
	file, dir, _, err := r.client.Repositories.GetContents(ctx, loc.owner, loc.repo, loc.subdir, opts)
	if err != nil {
		return nil, err
	}
	if dir == nil && file != nil {
		return nil, fmt.Errorf("%s/%s/%s is a file, not a directory", loc.owner, loc.repo, loc.subdir)
	}
	return dir, nil
}

func isDefaultCollection(src string) bool {
	return strings.EqualFold(strings.TrimRight(src, "/"), source.DefaultSource)
}

func findEntry(entries []*github.RepositoryContent, name string) *github.RepositoryContent {
	for _, e := range entries {
		if strings.EqualFold(e.GetName(), name) {
			return e
		}
	}
	return nil
}

// entrypointGuesses is the conventional naming search order for a plugin's
// executable file.
func entrypointGuesses(name string) []string {
	return []string{name, name + ".py", "__init__.py"}
}

// unsupportedKinds are entry-point conventions we can recognize but not
// install. Detection exists purely to produce a useful failure.
var unsupportedKinds = []struct {
	ext  string
	lang string
}{
	{".go", "go"},
	{".js", "javascript"},
	{".rs", "rust"},
}

func findEntrypoint(entries []*github.RepositoryContent, name string) (string, error) {
	for _, guess := range entrypointGuesses(name) {
		for _, e := range entries {
			if e.GetName() == guess {
				return guess, nil
			}
		}
	}
	for _, kind := range unsupportedKinds {
		for _, e := range entries {
			if e.GetName() == name+kind.ext {
				return "", &UnsupportedError{Name: name, Kind: kind.lang}
			}
		}
	}
	return "", nil
}

// depFiles is the dependency-descriptor search order; first match wins.
var depFiles = []struct {
	file string
	kind DepKind
}{
	{"requirements.txt", DepRequirements},
	{"pyproject.toml", DepPyproject},
}

func findDepKind(entries []*github.RepositoryContent) DepKind {
	for _, d := range depFiles {
		for _, e := range entries {
			if e.GetName() == d.file {
				return d.kind
			}
		}
	}
	return DepNone
}
