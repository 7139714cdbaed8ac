package resolve

import (
	"fmt"
	"strings"
)

// location is a parsed hosting URL: owner/repo plus an optional pinned
// revision and subdirectory carried by a /tree/<rev>/<path> segment.
type location struct {
	owner    string
	repo     string
	subdir   string
	revision string
}

func (l *location) cloneURL() string {
	return fmt.Sprintf("https://github.com/%s/%s", l.owner, l.repo)
}

// parseGitHubURL extracts owner and repository from a hosting URL. Listing
// URLs of the form .../tree/<revision>/<subdir> (or /blob/) are split into
// repository root, pinned revision and subdirectory. Anything that is not a
// github.com URL is rejected; other hosting platforms are not supported yet.
func parseGitHubURL(raw string) (*location, error) {
	idx := strings.Index(raw, "github.com")
	if idx < 0 {
		return nil, fmt.Errorf("unsupported source %s: only github.com URLs can be searched", raw)
	}

	rest := strings.Trim(raw[idx+len("github.com"):], ":/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("source %s does not name a repository", raw)
	}

	loc := &location{
		owner: parts[0],
		repo:  strings.TrimSuffix(parts[1], ".git"),
	}

	if len(parts) >= 4 && (parts[2] == "tree" || parts[2] == "blob") {
		loc.revision = parts[3]
		if len(parts) > 4 {
			loc.subdir = strings.Join(parts[4:], "/")
		}
	} else if len(parts) > 2 {
		loc.subdir = strings.Join(parts[2:], "/")
	}

	return loc, nil
}
