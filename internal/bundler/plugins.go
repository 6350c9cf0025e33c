package bundler

import (
	"fmt"
	"regexp"

	"github.com/evanw/esbuild/pkg/api"
)

const ignoredNamespace = "ignored"

// LimitChunkCountPlugin caps the number of output chunks. esbuild only
// distinguishes split and unsplit output, so any limit of one disables splitting.
type LimitChunkCountPlugin struct {
	MaxChunks int
}

func (p *LimitChunkCountPlugin) Apply(c *Compiler) {
	if p.MaxChunks == 1 {
		c.Options.Optimization.SplitChunks = false
		c.Options.Optimization.RuntimeChunk = false
	}
}

// IgnorePlugin keeps matching modules out of the bundle. Imports of an ignored
// module resolve to a stub that throws when evaluated.
type IgnorePlugin struct {
	ResourceRegExp *regexp.Regexp
}

func NewIgnorePlugin(pattern string) *IgnorePlugin {
	return &IgnorePlugin{ResourceRegExp: regexp.MustCompile(pattern)}
}

func (p *IgnorePlugin) Apply(c *Compiler) {
	c.UseESBuild(api.Plugin{
		Name: "ignore",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: p.ResourceRegExp.String()}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				return api.OnResolveResult{Path: args.Path, Namespace: ignoredNamespace}, nil
			})
			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: ignoredNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				contents := fmt.Sprintf("var e = new Error(%q); e.code = \"MODULE_NOT_FOUND\"; throw e;", "Cannot find module '"+args.Path+"'")
				return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
			})
		},
	})
}
