package bundler

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
)

var (
	ErrInvalidEnv    = errors.New("invalid build environment")
	ErrInvalidConfig = errors.New("invalid build configuration")
)

// Env identifies the build environment a configuration is produced for.
type Env string

const (
	EnvDevelopment Env = "development"
	EnvProduction  Env = "production"
)

func ParseEnv(s string) (Env, error) {
	switch Env(s) {
	case EnvDevelopment, EnvProduction:
		return Env(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEnv, s)
	}
}

type Target string

const (
	TargetWeb  Target = "web"
	TargetNode Target = "node"
)

// Library targets control the export surface of the output bundle.
const (
	LibraryTargetNone     = ""
	LibraryTargetUMD      = "umd"
	LibraryTargetCommonJS = "commonjs2"
)

// Devtool values recognised when translating to esbuild source map modes.
const (
	DevtoolNone            = ""
	DevtoolSourceMap       = "source-map"
	DevtoolInlineSourceMap = "inline-source-map"
)

type Output struct {
	// Directory the compiled assets are emitted into
	Path string
	// Entry file name template, e.g. "static/[ext]/[name].[hash]". A name without
	// placeholders names the single output file of a one entry build.
	Filename      string
	ChunkFilename string
	AssetFilename string
	// Prefix prepended to asset URLs
	PublicPath    string
	Library       string
	LibraryTarget string
	// Remove Path before emitting
	Clean bool
}

type Optimization struct {
	Minimize    bool
	SplitChunks bool
	// esbuild emits no separate runtime chunk, the flag is carried for configuration parity
	RuntimeChunk bool
}

// Config describes a single build. It is created per invocation by a factory,
// may be modified before it is handed to New and is not retained after the build.
type Config struct {
	Mode Env
	// Absolute project root, all relative paths resolve against it
	Context      string
	Entry        map[string]string
	Output       Output
	Plugins      []Plugin
	Optimization Optimization
	// Module name to global name
	Externals map[string]string
	Target    Target
	Devtool   string
	Define    map[string]string
	Loaders   map[string]api.Loader
}

// Plugin is applied to a compiler before the first build.
type Plugin interface {
	Apply(c *Compiler)
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if !filepath.IsAbs(c.Context) {
		return fmt.Errorf("%w: context %q must be an absolute path", ErrInvalidConfig, c.Context)
	}
	if len(c.Entry) == 0 {
		return fmt.Errorf("%w: no entry points", ErrInvalidConfig)
	}
	for name, src := range c.Entry {
		if src == "" {
			return fmt.Errorf("%w: entry %q has no source", ErrInvalidConfig, name)
		}
	}
	if c.Output.Path == "" {
		return fmt.Errorf("%w: output path is required", ErrInvalidConfig)
	}
	if c.Output.Filename == "" {
		return fmt.Errorf("%w: output filename is required", ErrInvalidConfig)
	}
	if isSingleFile(c.Output.Filename) && len(c.Entry) > 1 {
		return fmt.Errorf("%w: output filename %q can only name a single entry", ErrInvalidConfig, c.Output.Filename)
	}
	switch c.Target {
	case TargetWeb, TargetNode:
	default:
		return fmt.Errorf("%w: unknown target %q", ErrInvalidConfig, c.Target)
	}
	return nil
}

// resolve returns p relative to the config context when it is not absolute.
func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Context, p)
}
