// Package override layers the Timber specific settings onto the base build
// configuration: the asset manifest writer, the preload plugin, the production
// public path and the jQuery external WordPress always provides.
package override

import (
	"maps"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/wolfeidau/timberpack/internal/buildconfig"
	"github.com/wolfeidau/timberpack/internal/bundler"
	"github.com/wolfeidau/timberpack/internal/manifest"
	"github.com/wolfeidau/timberpack/internal/paths"
	"github.com/wolfeidau/timberpack/internal/preload"
)

// Externals are available on every WordPress page.
var Externals = map[string]string{
	"jquery": "jQuery",
}

// Override produces the primary build configuration. It does not start a
// preload build, callers run Runner explicitly.
type Override struct {
	factory buildconfig.Factory
	paths   paths.Paths
	runner  *preload.Runner
	fs      afero.Fs
	log     zerolog.Logger
}

type Option func(*Override)

// WithManifestFS sets the filesystem the asset manifest is written to.
func WithManifestFS(fs afero.Fs) Option {
	return func(o *Override) {
		o.fs = fs
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *Override) {
		o.log = log
	}
}

func New(factory buildconfig.Factory, p paths.Paths, runner *preload.Runner, opts ...Option) *Override {
	o := &Override{
		factory: factory,
		paths:   p,
		runner:  runner,
		fs:      afero.NewOsFs(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ManifestPath is where the asset manifest is written, next to the build directory.
func (o *Override) ManifestPath() string {
	return filepath.Join(filepath.Dir(o.paths.AppBuild), manifest.DefaultName)
}

// Config returns the base configuration for env with the asset manifest and
// preload plugins appended.
func (o *Override) Config(env bundler.Env) (*bundler.Config, error) {
	cfg, err := o.factory(env, false)
	if err != nil {
		return nil, err
	}

	writer := manifest.NewWriter(o.fs, filepath.Dir(o.paths.AppBuild), manifest.DefaultName, o.log)
	cfg.Plugins = append(cfg.Plugins, manifest.NewPlugin(writer))
	cfg.Plugins = append(cfg.Plugins, preload.NewPlugin(o.runner))

	// Timber templates prefix asset paths themselves
	if env == bundler.EnvProduction {
		cfg.Output.PublicPath = ""
	}

	cfg.Externals = maps.Clone(Externals)

	return cfg, nil
}
