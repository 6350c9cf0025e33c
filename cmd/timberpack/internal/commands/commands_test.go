package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/wolfeidau/timberpack/internal/manifest"
)

func writeTheme(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
	return root
}

var theme = map[string]string{
	"src/index.js":   "import './index.css';\nimport $ from 'jquery';\n$(() => document.body.classList.add(process.env.REACT_APP_THEME));\n",
	"src/index.css":  ".site { display: grid; }\n",
	"src/preload.js": "export default function (onError, onSuccess) { onSuccess('/'); }\n",
	".env":           "REACT_APP_THEME=timber\n",
}

func TestBuildCmd_Run(t *testing.T) {
	root := writeTheme(t, theme)

	cmd := &BuildCmd{Env: "production"}
	err := cmd.Run(context.Background(), &Globals{Version: "test", Root: root})
	require.NoError(t, err)

	assets, err := manifest.Read(afero.NewOsFs(), filepath.Join(root, manifest.DefaultName))
	require.NoError(t, err)
	require.Len(t, assets.JS, 1)
	require.Len(t, assets.CSS, 1)
	require.True(t, strings.HasPrefix(assets.JS[0], "static/js/"), assets.JS[0])

	script, err := os.ReadFile(filepath.Join(root, "build", filepath.FromSlash(assets.JS[0])))
	require.NoError(t, err)
	require.Contains(t, string(script), "timber")

	_, err = os.Stat(filepath.Join(root, "build", "index.html"))
	require.NoError(t, err)

	// the preload bundle is never written to disk
	_, err = os.Stat(filepath.Join(root, "build", "preloader.js"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildCmd_RunCompileError(t *testing.T) {
	root := writeTheme(t, map[string]string{
		"src/index.js":   "export const = ;\n",
		"src/preload.js": "export default function () {}\n",
	})

	cmd := &BuildCmd{Env: "production"}
	err := cmd.Run(context.Background(), &Globals{Root: root})
	require.EqualError(t, err, "failed to compile")
}

func TestPreloadCmd_Run(t *testing.T) {
	tests := []struct {
		name    string
		preload string
		wantErr string
	}{
		{
			name:    "success",
			preload: "export default function (onError, onSuccess) { onSuccess('/'); }\n",
		},
		{
			name:    "default export missing",
			preload: "export const pages = [];\n",
			wantErr: "preload failed while invoking",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeTheme(t, map[string]string{"src/preload.js": tt.preload})

			cmd := &PreloadCmd{Env: "development"}
			err := cmd.Run(context.Background(), &Globals{Root: root})
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
