package override

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/timberpack/internal/buildconfig"
	"github.com/wolfeidau/timberpack/internal/bundler"
	"github.com/wolfeidau/timberpack/internal/manifest"
	"github.com/wolfeidau/timberpack/internal/paths"
	"github.com/wolfeidau/timberpack/internal/preload"
)

type stubLoader struct {
	calls atomic.Int32
}

func (l *stubLoader) Load(context.Context, string, string) (preload.EntryFunc, error) {
	return func(_ func(string), onSuccess func(string)) error {
		l.calls.Add(1)
		onSuccess("/")
		return nil
	}, nil
}

func setup(t *testing.T) (*Override, buildconfig.Factory, paths.Paths, afero.Fs, *stubLoader) {
	t.Helper()

	root := t.TempDir()
	p, err := paths.Resolve(root)
	require.NoError(t, err)

	files := map[string]string{
		p.AppIndexJs:   "import './index.css';\nimport $ from 'jquery';\n$(() => console.log('timber'));\n",
		filepath.Join(p.AppSrc, "index.css"): "body { margin: 0; }\n",
		p.AppPreloadJs: "export default function (onError, onSuccess) { onSuccess('/'); }\n",
	}
	for name, content := range files {
		require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
	}

	factory := buildconfig.NewFactory(p, map[string]string{})
	loader := &stubLoader{}
	runner := preload.NewRunner(factory, bundler.EnvProduction, p.AppPreloadJs, preload.WithLoader(loader))

	fs := afero.NewMemMapFs()
	return New(factory, p, runner, WithManifestFS(fs)), factory, p, fs, loader
}

func TestOverride_Config(t *testing.T) {
	tests := []struct {
		name       string
		env        bundler.Env
		publicPath string
	}{
		{name: "production clears the public path", env: bundler.EnvProduction, publicPath: ""},
		{name: "development keeps the public path", env: bundler.EnvDevelopment, publicPath: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, factory, _, _, _ := setup(t)

			base, err := factory(tt.env, false)
			require.NoError(t, err)

			cfg, err := o.Config(tt.env)
			require.NoError(t, err)

			require.Len(t, cfg.Plugins, len(base.Plugins)+2)
			require.IsType(t, &manifest.Plugin{}, cfg.Plugins[len(cfg.Plugins)-2])
			require.IsType(t, &preload.Plugin{}, cfg.Plugins[len(cfg.Plugins)-1])
			require.Equal(t, "jQuery", cfg.Externals["jquery"])
			require.Equal(t, tt.publicPath, cfg.Output.PublicPath)
		})
	}
}

func TestOverride_ConfigDoesNotRunPreload(t *testing.T) {
	o, _, _, _, loader := setup(t)

	_, err := o.Config(bundler.EnvProduction)
	require.NoError(t, err)
	require.Zero(t, loader.calls.Load())
}

func TestOverride_ConfigInvalidEnv(t *testing.T) {
	o, _, _, _, _ := setup(t)

	_, err := o.Config(bundler.Env("staging"))
	require.ErrorIs(t, err, bundler.ErrInvalidEnv)
}

func TestOverride_buildWritesManifestAndRunsPreload(t *testing.T) {
	o, _, p, fs, loader := setup(t)

	cfg, err := o.Config(bundler.EnvProduction)
	require.NoError(t, err)

	c, err := bundler.New(cfg, bundler.WithOutputFS(fs))
	require.NoError(t, err)

	stats, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, stats.Err())

	require.Equal(t, filepath.Join(p.AppPath, manifest.DefaultName), o.ManifestPath())
	assets, err := manifest.Read(fs, o.ManifestPath())
	require.NoError(t, err)

	js, css, err := stats.Compilation.EntryAssets("main")
	require.NoError(t, err)
	require.Equal(t, manifest.Assets{JS: js, CSS: css}, assets)
	require.NotEmpty(t, assets.JS)
	require.NotEmpty(t, assets.CSS)

	require.EqualValues(t, 1, loader.calls.Load())
}

func TestOverride_watchRebuildRerunsPreloadAndRewritesManifest(t *testing.T) {
	o, _, p, fs, loader := setup(t)

	cfg, err := o.Config(bundler.EnvDevelopment)
	require.NoError(t, err)

	c, err := bundler.New(cfg, bundler.WithOutputFS(fs))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- c.Watch(ctx)
	}()

	require.Eventually(t, func() bool {
		return loader.calls.Load() == 1
	}, 10*time.Second, 20*time.Millisecond)

	_, err = manifest.Read(fs, o.ManifestPath())
	require.NoError(t, err)
	require.NoError(t, fs.Remove(o.ManifestPath()))

	require.NoError(t, os.WriteFile(p.AppIndexJs, []byte("import './index.css';\nconsole.log('timber rebuilt');\n"), 0o600))

	require.Eventually(t, func() bool {
		return loader.calls.Load() == 2
	}, 10*time.Second, 20*time.Millisecond)

	assets, err := manifest.Read(fs, o.ManifestPath())
	require.NoError(t, err)
	require.NotEmpty(t, assets.JS)

	cancel()
	select {
	case err := <-watchErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}
