package bundler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"maps"
	"os"
	"path/filepath"
	"slices"
)

const htmlHooksKey = "html-plugin"

const defaultHTMLTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
{{- range .Assets.CSS }}
<link rel="stylesheet" href="{{ . }}">
{{- end }}
</head>
<body>
<div id="root"></div>
{{- range .Assets.JS }}
<script {{ if $.Module }}type="module" {{ end }}src="{{ . }}"></script>
{{- end }}
</body>
</html>
`

type HTMLAssets struct {
	PublicPath string
	JS         []string
	CSS        []string
}

// HTMLPluginData is passed to the HTML generation hooks of a compilation.
type HTMLPluginData struct {
	Assets     HTMLAssets
	OutputName string
	Plugin     *HTMLPlugin
}

type HTMLHooks struct {
	// BeforeAssetTagGeneration runs once the assets are resolved, before tags are rendered
	BeforeAssetTagGeneration AsyncSeriesHook[*HTMLPluginData]
}

// GetHTMLHooks returns the HTML generation hooks of the compilation.
func GetHTMLHooks(c *Compilation) *HTMLHooks {
	return c.extension(htmlHooksKey, func() any { return &HTMLHooks{} }).(*HTMLHooks)
}

// HTMLPlugin renders an HTML page referencing the entry assets of each compilation.
type HTMLPlugin struct {
	// Template file, the built in template is used when empty or missing
	Template string
	Filename string
	Title    string
	// Entry names to include, all entries when empty
	Chunks []string
	Funcs  template.FuncMap
}

func (p *HTMLPlugin) Apply(c *Compiler) {
	c.Hooks.Compilation.Tap("HTMLPlugin", func(compilation *Compilation) {
		compilation.Hooks.ProcessAssets.TapAsync("HTMLPlugin", func(compilation *Compilation, next func(error)) {
			next(p.generate(compilation))
		})
	})
}

func (p *HTMLPlugin) generate(compilation *Compilation) error {
	data := &HTMLPluginData{
		Assets:     HTMLAssets{PublicPath: compilation.Config.Output.PublicPath, JS: []string{}, CSS: []string{}},
		OutputName: p.filename(),
		Plugin:     p,
	}

	chunks := p.Chunks
	if len(chunks) == 0 {
		chunks = entryNames(compilation.Config.Entry)
	}
	for _, name := range chunks {
		js, css, err := compilation.EntryAssets(name)
		if err != nil {
			return err
		}
		data.Assets.JS = appendUnique(data.Assets.JS, js...)
		data.Assets.CSS = appendUnique(data.Assets.CSS, css...)
	}

	if err := GetHTMLHooks(compilation).BeforeAssetTagGeneration.CallAsync(compilation.Context(), data); err != nil {
		return err
	}

	tmpl, err := p.template()
	if err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	err = tmpl.Execute(buf, map[string]any{
		"Title":  p.Title,
		"Assets": data.Assets,
		"Module": compilation.Config.Optimization.SplitChunks && compilation.Config.Target == TargetWeb,
	})
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", data.OutputName, err)
	}

	compilation.EmitAsset(data.OutputName, buf.Bytes())
	return nil
}

func (p *HTMLPlugin) filename() string {
	if p.Filename == "" {
		return "index.html"
	}
	return p.Filename
}

func (p *HTMLPlugin) template() (*template.Template, error) {
	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
	}

	// Merge custom functions
	maps.Copy(funcs, p.Funcs)

	if p.Template != "" {
		if _, err := os.Stat(p.Template); err == nil {
			return template.New(filepath.Base(p.Template)).Funcs(funcs).ParseFiles(p.Template)
		}
	}
	return template.New("index.html").Funcs(funcs).Parse(defaultHTMLTemplate)
}

func marshal(value any) string {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return buf.String()
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
