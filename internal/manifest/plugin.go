package manifest

import (
	"github.com/wolfeidau/timberpack/internal/bundler"
)

// Plugin saves the assets resolved by the HTML generation extension to the manifest.
type Plugin struct {
	Writer *Writer
}

func NewPlugin(w *Writer) *Plugin {
	return &Plugin{Writer: w}
}

// AssetsToJSON marks the plugin as the asset manifest writer.
func (p *Plugin) AssetsToJSON() bool {
	return true
}

// Apply registers on the HTML hooks of every compilation. A failed write is
// passed to the continuation and fails the compilation.
func (p *Plugin) Apply(c *bundler.Compiler) {
	c.Hooks.Compilation.Tap("SaveAssetsToDisk", func(compilation *bundler.Compilation) {
		hooks := bundler.GetHTMLHooks(compilation)
		hooks.BeforeAssetTagGeneration.TapAsync("SaveAssetsToDisk", func(data *bundler.HTMLPluginData, next func(error)) {
			next(p.Writer.Write(compilation.Context(), Assets{
				JS:  data.Assets.JS,
				CSS: data.Assets.CSS,
			}))
		})
	})
}
