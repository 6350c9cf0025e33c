package bundler

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type CompilationHooks struct {
	// ProcessAssets runs after esbuild has produced the output and before it is emitted
	ProcessAssets AsyncSeriesHook[*Compilation]
}

// Compilation holds the state of a single build pass.
type Compilation struct {
	ID       string
	Config   *Config
	Hooks    CompilationHooks
	Metafile *Metafile
	Errors   []error
	Warnings []string

	ctx        context.Context
	mu         sync.Mutex
	assets     map[string][]byte
	extensions map[string]any
}

func newCompilation(ctx context.Context, cfg *Config) *Compilation {
	return &Compilation{
		ID:         uuid.NewString(),
		Config:     cfg,
		ctx:        ctx,
		assets:     map[string][]byte{},
		extensions: map[string]any{},
	}
}

func (c *Compilation) Context() context.Context {
	return c.ctx
}

// EmitAsset adds or replaces an output file, name is relative to the output path.
func (c *Compilation) EmitAsset(name string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets[filepath.ToSlash(name)] = data
}

func (c *Compilation) Asset(name string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.assets[filepath.ToSlash(name)]
	return data, ok
}

// AssetNames returns the output file names in lexical order.
func (c *Compilation) AssetNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.assets))
	for name := range c.assets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (c *Compilation) AddError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errors = append(c.Errors, err)
}

// extension returns per compilation state owned by a plugin, creating it on first use.
func (c *Compilation) extension(key string, init func() any) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.extensions[key]
	if !ok {
		v = init()
		c.extensions[key] = v
	}
	return v
}

// EntryAssets returns the public URLs of the scripts and stylesheets needed by
// the named entry, the entry script first followed by the chunks it imports.
func (c *Compilation) EntryAssets(name string) (js []string, css []string, err error) {
	if c.Metafile == nil {
		return nil, nil, errors.New("compilation has no metafile")
	}

	src, ok := c.Config.Entry[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown entry %q", name)
	}

	entryPoint, err := c.metaPath(c.Config.resolve(src))
	if err != nil {
		return nil, nil, err
	}

	outputPath, info, ok := c.Metafile.entryOutput(entryPoint)
	if !ok {
		return nil, nil, fmt.Errorf("entry %q not found in metafile", name)
	}

	for _, script := range c.Metafile.scripts(outputPath) {
		if !strings.HasSuffix(script, ".js") {
			continue
		}
		u, err := c.publicURL(script)
		if err != nil {
			return nil, nil, err
		}
		js = append(js, u)
	}

	if info.CSSBundle != "" {
		u, err := c.publicURL(info.CSSBundle)
		if err != nil {
			return nil, nil, err
		}
		css = append(css, u)
	}

	return js, css, nil
}

// metaPath converts an absolute path into the form used by metafile keys.
func (c *Compilation) metaPath(abs string) (string, error) {
	rel, err := filepath.Rel(c.Config.Context, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// outputName converts a metafile output key into a name relative to the output path.
func (c *Compilation) outputName(metaKey string) (string, error) {
	abs := filepath.Join(c.Config.Context, filepath.FromSlash(metaKey))
	rel, err := filepath.Rel(c.Config.resolve(c.Config.Output.Path), abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (c *Compilation) publicURL(metaKey string) (string, error) {
	name, err := c.outputName(metaKey)
	if err != nil {
		return "", err
	}
	publicPath := c.Config.Output.PublicPath
	if publicPath == "" {
		return name, nil
	}
	if strings.Contains(publicPath, "://") {
		return strings.TrimSuffix(publicPath, "/") + "/" + name, nil
	}
	return path.Join(publicPath, name), nil
}

// Stats summarises a finished compilation.
type Stats struct {
	Compilation *Compilation
	StartTime   time.Time
	EndTime     time.Time
}

func (s *Stats) HasErrors() bool {
	return len(s.Compilation.Errors) > 0
}

func (s *Stats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// Err joins the compilation errors, nil when the compilation succeeded.
func (s *Stats) Err() error {
	return errors.Join(s.Compilation.Errors...)
}
