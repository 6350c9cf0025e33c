package bundler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"
)

// writeProject writes files below a new temporary project root.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	return root
}

func testConfig(root string) *Config {
	return &Config{
		Mode:    EnvDevelopment,
		Context: root,
		Entry: map[string]string{
			"main": "src/index.js",
		},
		Output: Output{
			Path:          filepath.Join(root, "build"),
			Filename:      "static/[ext]/[name]",
			ChunkFilename: "static/js/[name].chunk",
			AssetFilename: "static/media/[name]",
			PublicPath:    "/",
		},
		Optimization: Optimization{SplitChunks: true},
		Target:       TargetWeb,
		Loaders: map[string]api.Loader{
			".js":  api.LoaderJS,
			".css": api.LoaderCSS,
		},
	}
}
