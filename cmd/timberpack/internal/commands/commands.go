package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/timberpack/internal/buildconfig"
	"github.com/wolfeidau/timberpack/internal/bundler"
	"github.com/wolfeidau/timberpack/internal/logger"
	"github.com/wolfeidau/timberpack/internal/override"
	"github.com/wolfeidau/timberpack/internal/paths"
	"github.com/wolfeidau/timberpack/internal/preload"
	"github.com/wolfeidau/timberpack/internal/telemetry"
)

type Globals struct {
	Debug     bool
	Version   string
	Root      string
	Telemetry bool
}

// project wires the build pipeline for one command invocation.
type project struct {
	log      zerolog.Logger
	paths    paths.Paths
	env      bundler.Env
	runner   *preload.Runner
	override *override.Override
	shutdown func(context.Context) error
}

func setup(ctx context.Context, globals *Globals, envName string) (*project, error) {
	log := logger.Setup(globals.Debug)

	env, err := bundler.ParseEnv(envName)
	if err != nil {
		return nil, err
	}

	shutdown := func(context.Context) error { return nil }
	if globals.Telemetry {
		shutdown, err = telemetry.InitTelemetry(ctx, telemetry.DefaultConfig(globals.Version), log)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without it")
			shutdown = func(context.Context) error { return nil }
		}
	}

	p, err := paths.Resolve(globals.Root)
	if err != nil {
		return nil, err
	}

	client, err := buildconfig.LoadClientEnv(p, env)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	factory := buildconfig.NewFactory(p, client)
	runner := preload.NewRunner(factory, env, p.AppPreloadJs,
		preload.WithLogger(logger.Component(log, "preload")))

	log.Info().
		Str("version", globals.Version).
		Str("env", string(env)).
		Str("root", p.AppPath).
		Msg("Starting timberpack")

	return &project{
		log:      log,
		paths:    p,
		env:      env,
		runner:   runner,
		override: override.New(factory, p, runner, override.WithLogger(logger.Component(log, "manifest"))),
		shutdown: shutdown,
	}, nil
}

func (p *project) compiler() (*bundler.Compiler, error) {
	cfg, err := p.override.Config(p.env)
	if err != nil {
		return nil, fmt.Errorf("failed to create build configuration: %w", err)
	}

	return bundler.New(cfg, bundler.WithLogger(logger.Component(p.log, "bundler")))
}

func (p *project) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.shutdown(ctx); err != nil {
		p.log.Error().Err(err).Msg("Failed to shutdown telemetry")
	}
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
