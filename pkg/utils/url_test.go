package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKey(t *testing.T) {
	a := HashKey("pagination", "https://example.com")
	assert.Len(t, a, 64)
	assert.Equal(t, a, HashKey("pagination", "https://example.com"))
	assert.NotEqual(t, a, HashKey("journey", "https://example.com"))
}

func TestToAbsoluteURL(t *testing.T) {
	base, err := url.Parse("https://example.com/blog/page/2")
	require.NoError(t, err)

	abs, err := ToAbsoluteURL(base, "/blog/page/3")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/blog/page/3", abs)

	abs, err = ToAbsoluteURL(base, "https://other.example/x")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example/x", abs)
}

func TestJoinPath(t *testing.T) {
	u, err := JoinPath("https://example.com/", "/blog")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/blog", u)
}
