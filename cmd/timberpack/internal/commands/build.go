package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

type BuildCmd struct {
	Env string `help:"build environment" default:"production" env:"NODE_ENV" enum:"development,production"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	p, err := setup(ctx, globals, c.Env)
	if err != nil {
		return err
	}
	defer p.close()

	// the preload bundle runs before the primary build and again once it completes
	p.runner.Run(ctx)

	compiler, err := p.compiler()
	if err != nil {
		return err
	}

	stats, err := compiler.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to build: %w", err)
	}
	if stats.HasErrors() {
		return errors.New("failed to compile")
	}

	sizes, err := stats.FileSizes()
	if err != nil {
		return err
	}
	for _, s := range sizes {
		p.log.Info().
			Str("file", s.Name).
			Str("size", humanize.Bytes(uint64(s.Size))).   // #nosec G115 - sizes are never negative
			Str("gzip", humanize.Bytes(uint64(s.Gzip))). // #nosec G115 - sizes are never negative
			Msg("File size after gzip")
	}

	p.log.Info().
		Str("manifest", p.override.ManifestPath()).
		Str("output", p.paths.AppBuild).
		Dur("duration", stats.Duration()).
		Msg("Build complete")

	return nil
}
