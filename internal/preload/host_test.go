package preload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJoinPath(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{parts: []string{"/cache", "pages", "index.json"}, want: "/cache/pages/index.json"},
		{parts: []string{"cache", "../pages"}, want: "pages"},
		{parts: []string{""}, want: "."},
		{parts: nil, want: "."},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, joinPath(tt.parts...), tt.parts)
	}
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{parts: []string{"/cache", "pages"}, want: "/cache/pages"},
		{parts: []string{"/cache", "/content", "home.html"}, want: "/content/home.html"},
		{parts: []string{"/cache/pages", "..", "index"}, want: "/cache/index"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, resolvePath(tt.parts...), tt.parts)
	}
}
