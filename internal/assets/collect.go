package assets

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Collect walks srcRoot and returns a copy item for every regular file,
// mirrored under destRoot. Items are sorted by source path. A missing
// srcRoot is not an error and yields no items.
func Collect(srcRoot, destRoot string) ([]WorkItem, error) {
	var items []WorkItem
	err := walkFiles(srcRoot, func(path string) error {
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		items = append(items, WorkItem{
			Src:  path,
			Dest: filepath.Join(destRoot, rel),
			Kind: KindCopy,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Src < items[j].Src })
	return items, nil
}

// CollectImages returns an in-place optimize item for every image under
// root. Files without an image extension are ignored.
func CollectImages(root string) ([]WorkItem, error) {
	var items []WorkItem
	err := walkFiles(root, func(path string) error {
		kind, ok := ImageKind(path)
		if !ok {
			return nil
		}
		items = append(items, WorkItem{Src: path, Dest: path, Kind: kind})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Src < items[j].Src })
	return items, nil
}

// walkFiles calls fn for each regular file below root.
func walkFiles(root string, fn func(path string) error) error {
	info, err := os.Stat(root)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(path)
	})
}
