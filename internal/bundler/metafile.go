package bundler

import (
	"encoding/json"
	"fmt"
)

// Metafile is the subset of the esbuild metafile used to resolve entry assets.
type Metafile struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	Bytes      int          `json:"bytes"`
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
	CSSBundle  string       `json:"cssBundle"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external"`
}

func parseMetafile(data string) (*Metafile, error) {
	if data == "" {
		return &Metafile{Outputs: map[string]OutputInfo{}}, nil
	}

	var meta Metafile
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}
	return &meta, nil
}

// entryOutput finds the output generated for the given entry point input path.
func (m *Metafile) entryOutput(entryPoint string) (string, OutputInfo, bool) {
	for outputPath, info := range m.Outputs {
		if info.EntryPoint == entryPoint {
			return outputPath, info, true
		}
	}
	return "", OutputInfo{}, false
}

// scripts returns the output path followed by the chunks it imports, depth first.
func (m *Metafile) scripts(outputPath string) []string {
	scripts := []string{outputPath}
	visited := map[string]bool{outputPath: true}
	m.addDependencies(m.Outputs[outputPath], &scripts, visited)
	return scripts
}

func (m *Metafile) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.External || imp.Kind == "dynamic-import" || visited[imp.Path] {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, imp.Path)

		if chunkInfo, exists := m.Outputs[imp.Path]; exists {
			m.addDependencies(chunkInfo, scripts, visited)
		}
	}
}
