package preload

import (
	"github.com/wolfeidau/timberpack/internal/bundler"
)

// Plugin reruns the preload cycle after every successful primary compilation.
type Plugin struct {
	Runner *Runner
}

func NewPlugin(r *Runner) *Plugin {
	return &Plugin{Runner: r}
}

func (p *Plugin) Apply(c *bundler.Compiler) {
	log := c.Logger()
	c.Hooks.Done.Tap("PreloadServer", func(stats *bundler.Stats) {
		if stats.HasErrors() {
			log.Warn().Str("compilation", stats.Compilation.ID).Msg("Skipping preload, compilation failed")
			return
		}
		p.Runner.Run(stats.Compilation.Context())
	})
}
