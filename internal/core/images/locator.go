package images

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"garment-classifier/internal/core/types"
)

var ErrNoInputsFound = errors.New("no images found matching the provided inputs")

var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

func IsImagePath(path string) bool {
	return allowedExts[strings.ToLower(filepath.Ext(path))]
}

// Locate expands files and directories into a sorted, deduplicated list of
// image refs. Directories contribute only their immediate children unless
// recursive is set.
func Locate(inputs []string, recursive bool) ([]types.ImageRef, error) {
	seen := make(map[types.ImageRef]bool)
	var refs []types.ImageRef

	add := func(path string) {
		ref := types.NewImageRef(path)
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}

	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			slog.Warn("skipping input", "path", input, "error", err)
			continue
		}

		if !info.IsDir() {
			if IsImagePath(input) {
				add(input)
			}
			continue
		}

		if err := walkDir(input, recursive, add); err != nil {
			return nil, fmt.Errorf("error listing directory %s: %w", input, err)
		}
	}

	if len(refs) == 0 {
		return nil, ErrNoInputsFound
	}

	slices.Sort(refs)
	return refs, nil
}

func walkDir(root string, recursive bool, add func(string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if (d.Type().IsRegular() || d.Type()&fs.ModeSymlink != 0) && IsImagePath(path) {
			add(path)
		}
		return nil
	})
}
