package buildconfig

import (
	"github.com/evanw/esbuild/pkg/api"

	"github.com/wolfeidau/timberpack/internal/bundler"
	"github.com/wolfeidau/timberpack/internal/paths"
)

// Factory produces a fresh build configuration per call. preload asks for the
// variant used to compile the server side preload bundle.
type Factory func(env bundler.Env, preload bool) (*bundler.Config, error)

// NewFactory returns the base factory for the project layout in p.
func NewFactory(p paths.Paths, client map[string]string) Factory {
	return func(env bundler.Env, preload bool) (*bundler.Config, error) {
		if _, err := bundler.ParseEnv(string(env)); err != nil {
			return nil, err
		}

		isProd := env == bundler.EnvProduction

		cfg := &bundler.Config{
			Mode:    env,
			Context: p.AppPath,
			Entry: map[string]string{
				"main": p.AppIndexJs,
			},
			Output: bundler.Output{
				Path:          p.AppBuild,
				Filename:      cond(isProd, "static/[ext]/[name].[hash]", "static/[ext]/[name]"),
				ChunkFilename: cond(isProd, "static/js/[name].[hash].chunk", "static/js/[name].chunk"),
				AssetFilename: "static/media/[name].[hash]",
				PublicPath:    publicPath(p, client),
				Clean:         isProd,
			},
			Plugins: []bundler.Plugin{
				&bundler.HTMLPlugin{
					Template: p.AppHTML,
					Filename: "index.html",
				},
			},
			Optimization: bundler.Optimization{
				Minimize:     isProd,
				SplitChunks:  true,
				RuntimeChunk: true,
			},
			Target:  bundler.TargetWeb,
			Devtool: devtool(isProd, client),
			Define:  defines(client),
			Loaders: loaders(),
		}

		if preload {
			// the server has no use for stylesheets
			cfg.Loaders[".css"] = api.LoaderEmpty
			cfg.Define["process.env.PRELOAD"] = `"true"`
		}

		return cfg, nil
	}
}

func publicPath(p paths.Paths, client map[string]string) string {
	if v, ok := client["PUBLIC_URL"]; ok && v != "" {
		return v
	}
	if p.PublicURL != "" {
		return p.PublicURL
	}
	return "/"
}

func devtool(isProd bool, client map[string]string) string {
	if !isProd {
		return bundler.DevtoolInlineSourceMap
	}
	if client["GENERATE_SOURCEMAP"] == "false" {
		return bundler.DevtoolNone
	}
	return bundler.DevtoolSourceMap
}

func loaders() map[string]api.Loader {
	return map[string]api.Loader{
		".js":    api.LoaderJSX,
		".jsx":   api.LoaderJSX,
		".ts":    api.LoaderTS,
		".tsx":   api.LoaderTSX,
		".css":   api.LoaderCSS,
		".json":  api.LoaderJSON,
		".svg":   api.LoaderFile,
		".png":   api.LoaderFile,
		".jpg":   api.LoaderFile,
		".jpeg":  api.LoaderFile,
		".gif":   api.LoaderFile,
		".woff":  api.LoaderFile,
		".woff2": api.LoaderFile,
	}
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
