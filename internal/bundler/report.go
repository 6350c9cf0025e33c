package bundler

import (
	"bytes"
	"fmt"
	"path"
	"slices"

	"github.com/klauspost/compress/gzip"
)

// FileSize is the size of an emitted script or stylesheet.
type FileSize struct {
	Name string
	Size int
	Gzip int
}

// FileSizes reports the raw and gzipped size of the js and css assets, largest first.
func (s *Stats) FileSizes() ([]FileSize, error) {
	var sizes []FileSize

	for _, name := range s.Compilation.AssetNames() {
		switch path.Ext(name) {
		case ".js", ".css":
		default:
			continue
		}

		data, _ := s.Compilation.Asset(name)
		n, err := gzipSize(data)
		if err != nil {
			return nil, fmt.Errorf("failed to compress %s: %w", name, err)
		}
		sizes = append(sizes, FileSize{Name: name, Size: len(data), Gzip: n})
	}

	slices.SortStableFunc(sizes, func(a, b FileSize) int {
		return b.Gzip - a.Gzip
	})

	return sizes, nil
}

func gzipSize(data []byte) (int, error) {
	buf := new(bytes.Buffer)
	zw, err := gzip.NewWriterLevel(buf, gzip.BestCompression)
	if err != nil {
		return 0, err
	}
	if _, err := zw.Write(data); err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	return buf.Len(), nil
}
