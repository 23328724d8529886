package loader

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/MeKo-Tech/voucherscan/internal/utils"
)

// Discover walks root and returns every supported image file, sorted for
// deterministic batch processing.
func Discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if utils.IsSupportedImage(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", ErrSourceUnavailable, root, err)
	}
	sort.Strings(paths)
	return paths, nil
}
