package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/wolfeidau/timberpack/cmd/timberpack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug     bool   `help:"Enable debug mode."`
		Root      string `help:"Project root containing src/ and public/." default:"." type:"existingdir" env:"TIMBERPACK_ROOT"`
		Telemetry bool   `help:"Export traces and metrics over OTLP." default:"false" env:"TIMBERPACK_TELEMETRY"`
		Version   kong.VersionFlag

		Build   commands.BuildCmd   `cmd:"" help:"Build the theme assets, write assets.json and run the preload bundle"`
		Watch   commands.WatchCmd   `cmd:"" help:"Rebuild on change, optionally serving the build directory"`
		Preload commands.PreloadCmd `cmd:"" help:"Compile and run the preload bundle once"`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:     cli.Debug,
		Version:   version,
		Root:      cli.Root,
		Telemetry: cli.Telemetry,
	})
	cmd.FatalIfErrorf(err)
}
