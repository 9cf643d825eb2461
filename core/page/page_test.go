package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"about", "/about/"},
		{"/about", "/about/"},
		{"about/", "/about/"},
		{"/about/", "/about/"},
		{"/choir/history/", "/choir/history/"},
		{"", "/"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeURL(tc.in), tc.in)
	}
}

func TestMarkdown(t *testing.T) {
	html, err := Markdown("# Welcome\n\nRehearsals are on *Tuesdays*.")
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>Welcome</h1>")
	assert.Contains(t, string(html), "<em>Tuesdays</em>")

	html, err = Markdown("<script>alert(1)</script>")
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script>")
}
