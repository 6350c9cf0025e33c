package buildconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/wolfeidau/timberpack/internal/bundler"
	"github.com/wolfeidau/timberpack/internal/paths"
)

// ClientEnvPrefix marks variables that are exposed to bundled code.
const ClientEnvPrefix = "REACT_APP_"

// LoadClientEnv reads the dotenv files of the project for env. Files listed
// first take precedence and the process environment overrides all of them.
// Only NODE_ENV, PUBLIC_URL, GENERATE_SOURCEMAP and REACT_APP_* keys are returned.
func LoadClientEnv(p paths.Paths, env bundler.Env) (map[string]string, error) {
	files := []string{
		".env." + string(env) + ".local",
		".env.local",
		".env." + string(env),
		".env",
	}

	merged := map[string]string{}
	for _, name := range files {
		vars, err := godotenv.Read(filepath.Join(p.AppPath, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		for k, v := range vars {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}

	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if exposed(k) {
			merged[k] = v
		}
	}

	client := map[string]string{}
	for k, v := range merged {
		if exposed(k) {
			client[k] = v
		}
	}
	client["NODE_ENV"] = string(env)

	return client, nil
}

func exposed(key string) bool {
	return strings.HasPrefix(key, ClientEnvPrefix) || key == "PUBLIC_URL" || key == "GENERATE_SOURCEMAP"
}

// defines turns client variables into esbuild defines for process.env lookups.
func defines(client map[string]string) map[string]string {
	out := make(map[string]string, len(client)+1)
	for k, v := range client {
		quoted, _ := json.Marshal(v)
		out["process.env."+k] = string(quoted)
	}
	return out
}
