// Package manifest writes assets.json, the scripts and stylesheets theme
// templates emit for the primary build in load order.
//
// With chunk splitting on, web builds are ES modules and an entry script may
// import shared chunks with static import statements. Templates must emit the
// js entries as <script type="module">, classic script tags fail to parse them.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/wolfeidau/timberpack/internal/telemetry"
)

// DefaultName is the manifest file name the theme templates read.
const DefaultName = "assets.json"

// Assets lists the resolved script and stylesheet URLs of the primary build in load order.
type Assets struct {
	JS  []string `json:"js"`
	CSS []string `json:"css"`
}

// Writer persists the asset manifest, every write replaces the whole file.
type Writer struct {
	fs   afero.Fs
	path string
	log  zerolog.Logger
}

// NewWriter writes name inside root.
func NewWriter(fs afero.Fs, root, name string, log zerolog.Logger) *Writer {
	return &Writer{
		fs:   fs,
		path: filepath.Join(root, name),
		log:  log,
	}
}

func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) Write(ctx context.Context, assets Assets) error {
	if assets.JS == nil {
		assets.JS = []string{}
	}
	if assets.CSS == nil {
		assets.CSS = []string{}
	}

	data, err := json.Marshal(assets)
	if err != nil {
		return fmt.Errorf("failed to encode asset manifest: %w", err)
	}

	w.log.Info().Strs("js", assets.JS).Strs("css", assets.CSS).Msg("Saving assets")

	if err := afero.WriteFile(w.fs, w.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write asset manifest: %w", err)
	}

	telemetry.GetMetrics().ManifestWritesTotal.Add(ctx, 1)
	w.log.Info().Str("path", w.path).Msg("Wrote asset manifest")

	return nil
}

func Read(fs afero.Fs, path string) (Assets, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Assets{}, err
	}

	var assets Assets
	if err := json.Unmarshal(data, &assets); err != nil {
		return Assets{}, fmt.Errorf("failed to parse asset manifest %s: %w", path, err)
	}
	return assets, nil
}
