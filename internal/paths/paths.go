package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectFile is the optional per project configuration read from the project root.
const ProjectFile = "timberpack.yaml"

// Project overrides the default layout, all paths are relative to the project root.
type Project struct {
	Src          string `yaml:"src"`
	Build        string `yaml:"build"`
	Public       string `yaml:"public"`
	Entry        string `yaml:"entry"`
	PreloadEntry string `yaml:"preloadEntry"`
	HTML         string `yaml:"html"`
	PublicURL    string `yaml:"publicUrl"`
}

// DefaultProject mirrors a create-react-app layout inside a Timber theme.
func DefaultProject() Project {
	return Project{
		Src:          "src",
		Build:        "build",
		Public:       "public",
		Entry:        "src/index.js",
		PreloadEntry: "src/preload.js",
		HTML:         "public/index.html",
	}
}

// Paths are the resolved absolute locations the build reads from and writes to.
type Paths struct {
	AppPath      string
	AppSrc       string
	AppBuild     string
	AppPublic    string
	AppHTML      string
	AppIndexJs   string
	AppPreloadJs string
	PublicURL    string
}

// Resolve loads the project file in root, if any, and resolves the app paths.
func Resolve(root string) (Paths, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve project root: %w", err)
	}

	project, err := LoadProject(abs)
	if err != nil {
		return Paths{}, err
	}

	return project.Paths(abs), nil
}

// LoadProject reads the project file, defaults fill any field it leaves empty.
func LoadProject(root string) (Project, error) {
	project := DefaultProject()

	data, err := os.ReadFile(filepath.Join(root, ProjectFile))
	if errors.Is(err, os.ErrNotExist) {
		return project, nil
	}
	if err != nil {
		return Project{}, fmt.Errorf("failed to read %s: %w", ProjectFile, err)
	}

	var override Project
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Project{}, fmt.Errorf("failed to parse %s: %w", ProjectFile, err)
	}

	merge(&project.Src, override.Src)
	merge(&project.Build, override.Build)
	merge(&project.Public, override.Public)
	merge(&project.Entry, override.Entry)
	merge(&project.PreloadEntry, override.PreloadEntry)
	merge(&project.HTML, override.HTML)
	merge(&project.PublicURL, override.PublicURL)

	return project, nil
}

func (p Project) Paths(root string) Paths {
	return Paths{
		AppPath:      root,
		AppSrc:       join(root, p.Src),
		AppBuild:     join(root, p.Build),
		AppPublic:    join(root, p.Public),
		AppHTML:      join(root, p.HTML),
		AppIndexJs:   join(root, p.Entry),
		AppPreloadJs: join(root, p.PreloadEntry),
		PublicURL:    p.PublicURL,
	}
}

func merge(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func join(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}
