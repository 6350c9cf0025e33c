package commands

import (
	"context"
	"fmt"
)

type PreloadCmd struct {
	Env string `help:"build environment" default:"development" env:"NODE_ENV" enum:"development,production"`
}

func (c *PreloadCmd) Run(ctx context.Context, globals *Globals) error {
	p, err := setup(ctx, globals, c.Env)
	if err != nil {
		return err
	}
	defer p.close()

	res := p.runner.Run(ctx)
	if !res.OK() {
		// the failure has been logged, only the exit status is left to report
		return fmt.Errorf("preload failed while %s", res.Stage)
	}

	p.log.Info().Strs("paths", res.Preloaded).Msg("Preload complete")
	return nil
}
