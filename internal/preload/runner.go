package preload

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/timberpack/internal/buildconfig"
	"github.com/wolfeidau/timberpack/internal/bundler"
	"github.com/wolfeidau/timberpack/internal/telemetry"
)

const (
	// OutputName is the single file the preload bundle compiles to
	OutputName  = "preloader.js"
	LibraryName = "preloader"
	EntryName   = "preload"

	tracerName = "github.com/wolfeidau/timberpack/internal/preload"
)

// Externals the WordPress page provides, kept out of the preload bundle.
var Externals = map[string]string{
	"jquery": "jQuery",
}

var ErrArtifactMissing = errors.New("preload artifact missing from compilation output")

// Stage is the step a preload run is in, or ended in.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageConfiguring Stage = "configuring"
	StageCompiling   Stage = "compiling"
	StageExtracting  Stage = "extracting"
	StageEvaluating  Stage = "evaluating"
	StageInvoking    Stage = "invoking"
)

// Result records how a run ended. Err is nil and Stage is StageIdle when
// every stage completed.
type Result struct {
	Stage     Stage
	Err       error
	Preloaded []string
	Reported  []string
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Runner compiles the preload entry to memory, loads it and invokes its default export.
type Runner struct {
	factory buildconfig.Factory
	env     bundler.Env
	entry   string
	loader  ModuleLoader
	log     zerolog.Logger
}

type Option func(*Runner)

func WithLoader(loader ModuleLoader) Option {
	return func(r *Runner) {
		r.loader = loader
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner creates a runner compiling entry with configurations from factory.
func NewRunner(factory buildconfig.Factory, env bundler.Env, entry string, opts ...Option) *Runner {
	r := &Runner{
		factory: factory,
		env:     env,
		entry:   entry,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.loader == nil {
		r.loader = NewGojaLoader(r.log)
	}
	return r
}

// Config derives the preload build configuration from the factory's preload variant.
func (r *Runner) Config() (*bundler.Config, error) {
	cfg, err := r.factory(r.env, true)
	if err != nil {
		return nil, err
	}

	cfg.Entry = map[string]string{EntryName: r.entry}

	cfg.Optimization.Minimize = false
	cfg.Optimization.SplitChunks = false
	cfg.Optimization.RuntimeChunk = false

	plugins := filterPlugins(cfg.Plugins)
	plugins = append(plugins,
		&bundler.LimitChunkCountPlugin{MaxChunks: 1},
		bundler.NewIgnorePlugin(`jquery$`),
	)
	cfg.Plugins = plugins

	cfg.Output = bundler.Output{
		Path:          cfg.Output.Path,
		Filename:      OutputName,
		Library:       LibraryName,
		LibraryTarget: bundler.LibraryTargetUMD,
		PublicPath:    cfg.Output.PublicPath,
	}

	cfg.Target = bundler.TargetNode
	cfg.Devtool = bundler.DevtoolNone
	cfg.Externals = maps.Clone(Externals)

	return cfg, nil
}

// filterPlugins returns a copy of plugins without the asset manifest writer,
// HTML generation extensions and preload plugins.
func filterPlugins(plugins []bundler.Plugin) []bundler.Plugin {
	filtered := make([]bundler.Plugin, 0, len(plugins))
	for _, p := range plugins {
		if m, ok := p.(interface{ AssetsToJSON() bool }); ok && m.AssetsToJSON() {
			continue
		}
		if _, ok := p.(*bundler.HTMLPlugin); ok {
			continue
		}
		// a preload build must not trigger another one
		if _, ok := p.(*Plugin); ok {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

// Run performs one preload cycle. Failures are logged and reported in the
// result, they are never returned as errors or retried.
func (r *Runner) Run(ctx context.Context) (res Result) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "preload.Run")
	started := time.Now()
	res.Stage = StageConfiguring

	defer func() {
		if rec := recover(); rec != nil {
			res.Err = fmt.Errorf("preload panicked: %v", rec)
			r.log.Error().Str("stage", string(res.Stage)).Err(res.Err).Msg("Preload failed")
		}

		outcome := "success"
		if res.Err != nil {
			outcome = "failure"
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, string(res.Stage))
		} else {
			res.Stage = StageIdle
		}

		attrs := metric.WithAttributes(attribute.String("stage", string(res.Stage)), attribute.String("outcome", outcome))
		m := telemetry.GetMetrics()
		m.PreloadRunsTotal.Add(ctx, 1, attrs)
		m.PreloadDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)

		span.End()
	}()

	fail := func(err error) Result {
		res.Err = err
		r.log.Error().Str("stage", string(res.Stage)).Err(err).Msg("Preload failed")
		return res
	}

	r.log.Info().Str("env", string(r.env)).Str("entry", r.entry).Msg("Creating preload bundle")

	cfg, err := r.Config()
	if err != nil {
		return fail(err)
	}

	memFS := afero.NewMemMapFs()
	compiler, err := bundler.New(cfg, bundler.WithOutputFS(memFS), bundler.WithLogger(r.log))
	if err != nil {
		return fail(err)
	}

	res.Stage = StageCompiling
	stats, err := compiler.Run(ctx)
	if err != nil {
		return fail(err)
	}
	if stats.HasErrors() {
		return fail(stats.Err())
	}

	res.Stage = StageExtracting
	src, err := afero.ReadFile(memFS, filepath.Join(cfg.Output.Path, OutputName))
	if err != nil {
		return fail(fmt.Errorf("%w: %s: %w", ErrArtifactMissing, OutputName, err))
	}

	res.Stage = StageEvaluating
	entry, err := r.loader.Load(ctx, OutputName, string(src))
	if err != nil {
		return fail(err)
	}

	res.Stage = StageInvoking
	err = entry(
		func(msg string) {
			res.Reported = append(res.Reported, msg)
			r.log.Error().Str("stage", string(StageInvoking)).Msg(msg)
		},
		func(path string) {
			res.Preloaded = append(res.Preloaded, path)
			r.log.Info().Str("path", path).Msg("Preloaded")
		},
	)
	if err != nil {
		return fail(err)
	}

	return res
}
