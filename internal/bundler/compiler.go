package bundler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/timberpack/internal/telemetry"
)

const tracerName = "github.com/wolfeidau/timberpack/internal/bundler"

type CompilerHooks struct {
	// Compilation fires when a build pass starts, before esbuild runs
	Compilation SyncHook[*Compilation]
	// Done fires after every build pass, successful or not
	Done SyncHook[*Stats]
}

// Compiler drives esbuild through the compilation lifecycle plugins tap into.
type Compiler struct {
	Options  *Config
	Hooks    CompilerHooks
	OutputFS afero.Fs

	log            zerolog.Logger
	esbuildPlugins []api.Plugin
}

type Option func(*Compiler)

// WithOutputFS sets the filesystem compiled assets are emitted to.
func WithOutputFS(fs afero.Fs) Option {
	return func(c *Compiler) {
		c.OutputFS = fs
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Compiler) {
		c.log = log
	}
}

// New validates the configuration and applies its plugins in order.
func New(cfg *Config, opts ...Option) (*Compiler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Compiler{
		Options:  cfg,
		OutputFS: afero.NewOsFs(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, p := range cfg.Plugins {
		if p == nil {
			continue
		}
		p.Apply(c)
	}

	// plugins may adjust options while being applied
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// UseESBuild registers an esbuild plugin, typically from a Plugin's Apply.
func (c *Compiler) UseESBuild(p api.Plugin) {
	c.esbuildPlugins = append(c.esbuildPlugins, p)
}

func (c *Compiler) Logger() zerolog.Logger {
	return c.log
}

// Run builds once. Compilation failures are reported through the stats, the
// returned error is reserved for failures of the build machinery itself.
func (c *Compiler) Run(ctx context.Context) (*Stats, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "bundler.Run")
	defer span.End()

	var stats *Stats

	opts := c.buildOptions()
	opts.Plugins = append(opts.Plugins, c.lifecyclePlugin(ctx, func(s *Stats) { stats = s }))

	result := api.Build(opts)

	if stats == nil {
		err := errors.New("build finished without completing a compilation")
		if len(result.Errors) > 0 {
			err = errors.Join(formatMessages(result.Errors, api.ErrorMessage)...)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("compilation.id", stats.Compilation.ID),
		attribute.Int("compilation.errors", len(stats.Compilation.Errors)),
	)
	if stats.HasErrors() {
		span.SetStatus(codes.Error, "compilation failed")
	}

	return stats, nil
}

// Watch builds and then rebuilds whenever an input changes until ctx is done.
func (c *Compiler) Watch(ctx context.Context) error {
	opts := c.buildOptions()
	opts.Plugins = append(opts.Plugins, c.lifecyclePlugin(ctx, nil))

	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return fmt.Errorf("failed to create build context: %w", errors.Join(formatMessages(ctxErr.Errors, api.ErrorMessage)...))
	}
	defer buildCtx.Dispose()

	if err := buildCtx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}

	c.log.Info().Str("context", c.Options.Context).Msg("Watching for changes")

	<-ctx.Done()
	buildCtx.Cancel()

	return nil
}

// lifecyclePlugin bridges esbuild build passes onto the compiler hooks.
func (c *Compiler) lifecyclePlugin(ctx context.Context, onStats func(*Stats)) api.Plugin {
	return api.Plugin{
		Name: "lifecycle",
		Setup: func(build api.PluginBuild) {
			var (
				compilation *Compilation
				started     time.Time
			)

			build.OnStart(func() (api.OnStartResult, error) {
				started = time.Now()
				compilation = newCompilation(ctx, c.Options)
				c.log.Debug().Str("compilation", compilation.ID).Msg("Compilation started")
				c.Hooks.Compilation.Call(compilation)
				return api.OnStartResult{}, nil
			})

			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if compilation == nil {
					started = time.Now()
					compilation = newCompilation(ctx, c.Options)
				}
				c.finish(ctx, compilation, result)

				stats := &Stats{Compilation: compilation, StartTime: started, EndTime: time.Now()}
				c.record(ctx, stats)
				c.Hooks.Done.Call(stats)
				if onStats != nil {
					onStats(stats)
				}
				return api.OnEndResult{}, nil
			})
		},
	}
}

func (c *Compiler) finish(ctx context.Context, compilation *Compilation, result *api.BuildResult) {
	for _, w := range formatMessages(result.Warnings, api.WarningMessage) {
		compilation.Warnings = append(compilation.Warnings, w.Error())
		c.log.Warn().Str("compilation", compilation.ID).Str("warning", w.Error()).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		for _, err := range formatMessages(result.Errors, api.ErrorMessage) {
			compilation.AddError(err)
			c.log.Error().Str("compilation", compilation.ID).Err(err).Msg("Build error")
		}
		return
	}

	meta, err := parseMetafile(result.Metafile)
	if err != nil {
		compilation.AddError(err)
		return
	}
	compilation.Metafile = meta

	outputPath := c.Options.resolve(c.Options.Output.Path)
	for _, file := range result.OutputFiles {
		name, err := filepath.Rel(outputPath, file.Path)
		if err != nil {
			compilation.AddError(fmt.Errorf("output %s is outside %s: %w", file.Path, outputPath, err))
			return
		}
		compilation.EmitAsset(name, file.Contents)
	}

	if err := compilation.Hooks.ProcessAssets.CallAsync(ctx, compilation); err != nil {
		compilation.AddError(fmt.Errorf("failed to process assets: %w", err))
		return
	}

	if err := c.emit(compilation); err != nil {
		compilation.AddError(err)
	}
}

func (c *Compiler) emit(compilation *Compilation) error {
	outputPath := c.Options.resolve(c.Options.Output.Path)

	if c.Options.Output.Clean {
		if err := c.OutputFS.RemoveAll(outputPath); err != nil {
			return fmt.Errorf("failed to clean %s: %w", outputPath, err)
		}
	}

	for _, name := range compilation.AssetNames() {
		data, _ := compilation.Asset(name)
		target := filepath.Join(outputPath, filepath.FromSlash(name))

		if err := c.OutputFS.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", name, err)
		}
		if err := afero.WriteFile(c.OutputFS, target, data, 0o644); err != nil {
			return fmt.Errorf("failed to emit %s: %w", name, err)
		}
		c.log.Debug().Str("compilation", compilation.ID).Str("file", target).Msg("Emitted file")
	}

	return nil
}

func (c *Compiler) record(ctx context.Context, stats *Stats) {
	m := telemetry.GetMetrics()
	mode := attribute.String("mode", string(c.Options.Mode))

	m.BuildsTotal.Add(ctx, 1, metric.WithAttributes(mode))
	m.BuildDuration.Record(ctx, float64(stats.Duration().Milliseconds()), metric.WithAttributes(mode))
	if stats.HasErrors() {
		m.BuildErrorsTotal.Add(ctx, 1, metric.WithAttributes(mode))
	}

	event := c.log.Info()
	if stats.HasErrors() {
		event = c.log.Error().Int("errors", len(stats.Compilation.Errors))
	}
	event.Str("compilation", stats.Compilation.ID).
		Int("assets", len(stats.Compilation.AssetNames())).
		Dur("duration", stats.Duration()).
		Msg("Compilation finished")
}

func formatMessages(msgs []api.Message, kind api.MessageKind) []error {
	errs := make([]error, 0, len(msgs))
	for _, msg := range api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: kind}) {
		errs = append(errs, errors.New(msg))
	}
	return errs
}
