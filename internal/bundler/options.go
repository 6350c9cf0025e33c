package bundler

import (
	"fmt"
	"maps"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

const externalGlobalNamespace = "external-global"

// buildOptions translates the configuration into esbuild options. Output is
// always kept in memory, the compiler emits it through its own filesystem.
func (c *Compiler) buildOptions() api.BuildOptions {
	cfg := c.Options

	opts := api.BuildOptions{
		AbsWorkingDir:     cfg.Context,
		Bundle:            true,
		Write:             false,
		Metafile:          true,
		JSX:               api.JSXAutomatic,
		TreeShaking:       api.TreeShakingTrue,
		Target:            api.ES2020,
		MinifyWhitespace:  cfg.Optimization.Minimize,
		MinifyIdentifiers: cfg.Optimization.Minimize,
		MinifySyntax:      cfg.Optimization.Minimize,
		Sourcemap:         sourceMap(cfg.Devtool),
		PublicPath:        cfg.Output.PublicPath,
		Define:            cfg.Define,
		Loader:            cfg.Loaders,
		LogLevel:          api.LogLevelSilent,
	}

	outputPath := cfg.resolve(cfg.Output.Path)
	if isSingleFile(cfg.Output.Filename) {
		for _, src := range cfg.Entry {
			opts.EntryPoints = []string{cfg.resolve(src)}
		}
		opts.Outfile = filepath.Join(outputPath, cfg.Output.Filename)
	} else {
		for _, name := range entryNames(cfg.Entry) {
			opts.EntryPointsAdvanced = append(opts.EntryPointsAdvanced, api.EntryPoint{
				InputPath:  cfg.resolve(cfg.Entry[name]),
				OutputPath: name,
			})
		}
		opts.Outdir = outputPath
		opts.EntryNames = cfg.Output.Filename
		opts.ChunkNames = cfg.Output.ChunkFilename
		opts.AssetNames = cfg.Output.AssetFilename
	}

	switch {
	case cfg.Target == TargetNode:
		opts.Platform = api.PlatformNode
		opts.Format = api.FormatCommonJS
	case cfg.Output.LibraryTarget == LibraryTargetUMD || cfg.Output.LibraryTarget == LibraryTargetCommonJS:
		opts.Platform = api.PlatformBrowser
		opts.Format = api.FormatCommonJS
	case cfg.Optimization.SplitChunks:
		opts.Platform = api.PlatformBrowser
		opts.Format = api.FormatESModule
		opts.Splitting = true
	default:
		opts.Platform = api.PlatformBrowser
		opts.Format = api.FormatIIFE
		opts.GlobalName = cfg.Output.Library
	}

	if len(cfg.Externals) > 0 {
		if cfg.Target == TargetNode {
			// node resolves externals at runtime through require
			opts.External = slices.Sorted(maps.Keys(cfg.Externals))
		} else {
			opts.Plugins = append(opts.Plugins, externalGlobalsPlugin(cfg.Externals))
		}
	}

	opts.Plugins = append(opts.Plugins, c.esbuildPlugins...)

	return opts
}

// externalGlobalsPlugin replaces imports of external modules with a lookup of
// the global the page provides.
func externalGlobalsPlugin(externals map[string]string) api.Plugin {
	names := slices.Sorted(maps.Keys(externals))
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = regexp.QuoteMeta(name)
	}
	filter := "^(" + strings.Join(quoted, "|") + ")$"

	return api.Plugin{
		Name: "external-globals",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: filter}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				return api.OnResolveResult{Path: args.Path, Namespace: externalGlobalNamespace}, nil
			})
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: externalGlobalNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				contents := fmt.Sprintf("module.exports = globalThis[%q];", externals[args.Path])
				return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
			})
		},
	}
}

func sourceMap(devtool string) api.SourceMap {
	switch devtool {
	case DevtoolNone:
		return api.SourceMapNone
	case DevtoolInlineSourceMap:
		return api.SourceMapInline
	default:
		return api.SourceMapLinked
	}
}

func isSingleFile(filename string) bool {
	return filename != "" && !strings.Contains(filename, "[")
}

func entryNames(entry map[string]string) []string {
	return slices.Sorted(maps.Keys(entry))
}
