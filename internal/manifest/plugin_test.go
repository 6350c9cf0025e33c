package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/timberpack/internal/bundler"
)

func newProject(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	files := map[string]string{
		"src/index.js": "import './index.css';\nconsole.log('timber');\n",
		"src/index.css": "body { margin: 0; }\n",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	return root
}

func newConfig(root string, plugins ...bundler.Plugin) *bundler.Config {
	return &bundler.Config{
		Mode:    bundler.EnvProduction,
		Context: root,
		Entry:   map[string]string{"main": "src/index.js"},
		Output: bundler.Output{
			Path:     filepath.Join(root, "build"),
			Filename: "static/[ext]/[name].[hash]",
		},
		Plugins: plugins,
		Target:  bundler.TargetWeb,
		Loaders: map[string]api.Loader{".js": api.LoaderJS, ".css": api.LoaderCSS},
	}
}

func TestPlugin_writesManifestFromHTMLAssets(t *testing.T) {
	root := newProject(t)
	fs := afero.NewMemMapFs()
	w := NewWriter(fs, root, DefaultName, zerolog.Nop())

	cfg := newConfig(root, &bundler.HTMLPlugin{}, NewPlugin(w))
	c, err := bundler.New(cfg, bundler.WithOutputFS(fs))
	require.NoError(t, err)

	stats, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, stats.Err())

	got, err := Read(fs, filepath.Join(root, DefaultName))
	require.NoError(t, err)

	require.Len(t, got.JS, 1)
	require.True(t, strings.HasPrefix(got.JS[0], "static/js/"), got.JS[0])
	require.Len(t, got.CSS, 1)
	require.True(t, strings.HasPrefix(got.CSS[0], "static/css/"), got.CSS[0])

	// the host pipeline continued and rendered the page
	_, ok := stats.Compilation.Asset("index.html")
	require.True(t, ok)
}

func TestPlugin_withoutHTMLPluginDoesNothing(t *testing.T) {
	root := newProject(t)
	fs := afero.NewMemMapFs()
	w := NewWriter(fs, root, DefaultName, zerolog.Nop())

	c, err := bundler.New(newConfig(root, NewPlugin(w)), bundler.WithOutputFS(fs))
	require.NoError(t, err)

	stats, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, stats.Err())

	exists, err := afero.Exists(fs, w.Path())
	require.NoError(t, err)
	require.False(t, exists)
}

func TestPlugin_writeFailureFailsCompilation(t *testing.T) {
	root := newProject(t)
	w := NewWriter(afero.NewReadOnlyFs(afero.NewMemMapFs()), root, DefaultName, zerolog.Nop())

	c, err := bundler.New(newConfig(root, &bundler.HTMLPlugin{}, NewPlugin(w)), bundler.WithOutputFS(afero.NewMemMapFs()))
	require.NoError(t, err)

	stats, err := c.Run(context.Background())
	require.NoError(t, err)
	require.True(t, stats.HasErrors())
	require.Contains(t, stats.Err().Error(), "SaveAssetsToDisk")
}

func TestPlugin_marker(t *testing.T) {
	var p any = NewPlugin(nil)
	marker, ok := p.(interface{ AssetsToJSON() bool })
	require.True(t, ok)
	require.True(t, marker.AssetsToJSON())
}

func TestPlugin_splitEntryScriptsAreModules(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"src/index.js":  "import { shared } from './shared.js';\nshared('main');\nimport('./lazy.js').then((m) => m.run());\n",
		"src/shared.js": "export function shared(name) { console.log('timber', name); }\n",
		"src/lazy.js":   "import { shared } from './shared.js';\nexport function run() { shared('lazy'); }\n",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}

	fs := afero.NewMemMapFs()
	w := NewWriter(fs, root, DefaultName, zerolog.Nop())

	cfg := newConfig(root, &bundler.HTMLPlugin{}, NewPlugin(w))
	cfg.Output.ChunkFilename = "static/js/[name].[hash].chunk"
	cfg.Optimization.SplitChunks = true

	c, err := bundler.New(cfg, bundler.WithOutputFS(fs))
	require.NoError(t, err)

	stats, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, stats.Err())

	got, err := Read(fs, w.Path())
	require.NoError(t, err)

	// the entry comes first, followed by the shared chunk it imports
	require.Len(t, got.JS, 2)
	require.True(t, strings.HasPrefix(got.JS[0], "static/js/main."), got.JS[0])

	entry, ok := stats.Compilation.Asset(got.JS[0])
	require.True(t, ok)
	require.Regexp(t, `import\s*\{[^}]*\}\s*from\s*"\./`, string(entry))

	html, ok := stats.Compilation.Asset("index.html")
	require.True(t, ok)
	require.Contains(t, string(html), `type="module"`)
}
