package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitHubURL(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want location
	}{
		{
			name: "plain repository",
			raw:  "https://github.com/lightningd/plugins",
			want: location{owner: "lightningd", repo: "plugins"},
		},
		{
			name: "trailing slash and .git",
			raw:  "https://github.com/user/repo.git/",
			want: location{owner: "user", repo: "repo"},
		},
		{
			name: "scheme-less",
			raw:  "github.com/user/repo",
			want: location{owner: "user", repo: "repo"},
		},
		{
			name: "tree with revision",
			raw:  "https://github.com/user/repo/tree/v1.0",
			want: location{owner: "user", repo: "repo", revision: "v1.0"},
		},
		{
			name: "tree with revision and subdir",
			raw:  "https://github.com/user/repo/tree/master/plugins/foo",
			want: location{owner: "user", repo: "repo", revision: "master", subdir: "plugins/foo"},
		},
		{
			name: "bare subdir",
			raw:  "https://github.com/user/repo/plugins",
			want: location{owner: "user", repo: "repo", subdir: "plugins"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loc, err := parseGitHubURL(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, *loc)
		})
	}
}

func TestParseGitHubURLRejectsOtherHosts(t *testing.T) {
	_, err := parseGitHubURL("https://gitlab.com/user/repo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only github.com")

	_, err = parseGitHubURL("https://github.com/useronly")
	require.Error(t, err)
}

func TestCloneURL(t *testing.T) {
	loc := location{owner: "user", repo: "repo", subdir: "x", revision: "v1"}
	assert.Equal(t, "https://github.com/user/repo", loc.cloneURL())
}
