package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve_defaults(t *testing.T) {
	root := t.TempDir()

	p, err := Resolve(root)
	require.NoError(t, err)

	require.Equal(t, root, p.AppPath)
	require.Equal(t, filepath.Join(root, "build"), p.AppBuild)
	require.Equal(t, filepath.Join(root, "src", "index.js"), p.AppIndexJs)
	require.Equal(t, filepath.Join(root, "src", "preload.js"), p.AppPreloadJs)
	require.Equal(t, filepath.Join(root, "public", "index.html"), p.AppHTML)
	require.Empty(t, p.PublicURL)
}

func TestResolve_projectFile(t *testing.T) {
	root := t.TempDir()
	project := `
build: dist/app
preloadEntry: server/preload.js
publicUrl: /wp-content/themes/timber/dist/app/
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectFile), []byte(project), 0o600))

	p, err := Resolve(root)
	require.NoError(t, err)

	require.Equal(t, filepath.Join(root, "dist", "app"), p.AppBuild)
	require.Equal(t, filepath.Join(root, "server", "preload.js"), p.AppPreloadJs)
	require.Equal(t, "/wp-content/themes/timber/dist/app/", p.PublicURL)
	// untouched fields keep their defaults
	require.Equal(t, filepath.Join(root, "src", "index.js"), p.AppIndexJs)
}

func TestResolve_invalidProjectFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectFile), []byte("build: [unterminated"), 0o600))

	_, err := Resolve(root)
	require.Error(t, err)
	require.Contains(t, err.Error(), ProjectFile)
}
