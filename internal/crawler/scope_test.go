package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopeRejectsOtherHosts(t *testing.T) {
	scope, err := NewScope("https://docs.example.com/guide/intro", nil, nil)
	require.NoError(t, err)
	require.False(t, scope.InScope("https://other.example.com/guide/intro"))
	require.True(t, scope.InScope("https://docs.example.com/guide/intro"))
}

func TestScopeExcludePatterns(t *testing.T) {
	scope, err := NewScope("https://docs.example.com/guide/intro",
		nil, []string{`/changelog`, `\?lang=`})
	require.NoError(t, err)
	require.False(t, scope.InScope("https://docs.example.com/guide/changelog"))
	require.False(t, scope.InScope("https://docs.example.com/guide/intro?lang=fr"))
	require.True(t, scope.InScope("https://docs.example.com/guide/intro"))
}

func TestScopeInvalidExcludePattern(t *testing.T) {
	_, err := NewScope("https://docs.example.com/guide", nil, []string{"["})
	require.Error(t, err)
}

func TestScopeExplicitPrefixes(t *testing.T) {
	scope, err := NewScope("https://docs.example.com/guide/intro",
		[]string{"/guide", "api/"}, nil)
	require.NoError(t, err)
	require.True(t, scope.InScope("https://docs.example.com/guide"))
	require.True(t, scope.InScope("https://docs.example.com/guide/advanced"))
	require.True(t, scope.InScope("https://docs.example.com/api/v2"))
	require.False(t, scope.InScope("https://docs.example.com/guide-v2"),
		"prefix must match on a path component boundary")
	require.False(t, scope.InScope("https://docs.example.com/blog/post"))
}

func TestScopeExplicitPrefixesAreExhaustive(t *testing.T) {
	scope, err := NewScope("https://docs.example.com/docs/api/v2/intro",
		[]string{"/docs/api/v2"}, nil)
	require.NoError(t, err)
	require.True(t, scope.InScope("https://docs.example.com/docs/api/v2"))
	require.True(t, scope.InScope("https://docs.example.com/docs/api/v2/auth"))
	require.False(t, scope.InScope("https://docs.example.com/docs/api/other"),
		"a sibling of an explicit prefix is out of scope")
	require.False(t, scope.InScope("https://docs.example.com/docs/api"),
		"an ancestor of an explicit prefix is out of scope")
	require.False(t, scope.InScope("https://docs.example.com/docs"))
}

func TestScopeDefaultPrefixFromSeed(t *testing.T) {
	scope, err := NewScope("https://docs.example.com/docs/guide/intro", nil, nil)
	require.NoError(t, err)
	require.True(t, scope.InScope("https://docs.example.com/docs/guide/advanced"))
	require.True(t, scope.InScope("https://docs.example.com/docs/api/v2"),
		"ancestor prefix keeps sibling sections reachable")
	require.False(t, scope.InScope("https://docs.example.com/blog/post"))
}

func TestScopeRootSeedAllowsWholeHost(t *testing.T) {
	scope, err := NewScope("https://docs.example.com/", nil, nil)
	require.NoError(t, err)
	require.True(t, scope.InScope("https://docs.example.com/anything/at/all"))
	require.False(t, scope.InScope("https://elsewhere.example.com/anything"))
}
