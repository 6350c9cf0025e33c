package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	httpmiddleware "github.com/wolfeidau/timberpack/internal/http"
)

type WatchCmd struct {
	Env         string   `help:"build environment" default:"development" env:"NODE_ENV" enum:"development,production"`
	Serve       string   `help:"serve the build directory on this address, e.g. localhost:3000" default:"" env:"TIMBERPACK_SERVE"`
	CORSOrigins []string `help:"origins allowed to load served assets, typically the WordPress site" default:"http://localhost:8080" env:"TIMBERPACK_CORS_ORIGINS"`
}

func (c *WatchCmd) Run(ctx context.Context, globals *Globals) error {
	p, err := setup(ctx, globals, c.Env)
	if err != nil {
		return err
	}
	defer p.close()

	p.runner.Run(ctx)

	compiler, err := p.compiler()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return compiler.Watch(ctx)
	})

	if c.Serve != "" {
		handler := cors.New(cors.Options{
			AllowedOrigins: c.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodHead},
		}).Handler(http.FileServer(http.Dir(p.paths.AppBuild)))

		srv := configureHTTPServer(c.Serve, httpmiddleware.RequestLogger(p.log)(handler))

		g.Go(func() error {
			p.log.Info().Str("addr", c.Serve).Str("dir", p.paths.AppBuild).Msg("Serving build directory")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
