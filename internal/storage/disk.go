package storage

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
)

// PathUsage is the on-disk size of one named storage location.
type PathUsage struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// DiskUsage measures each named path and returns the per-path sizes sorted
// by name together with their total.
func DiskUsage(paths map[string]string) ([]PathUsage, int64, error) {
	out := make([]PathUsage, 0, len(paths))
	var total int64
	for name, p := range paths {
		n, err := DiskUsageBytes(p)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, PathUsage{Name: name, Path: p, Bytes: n})
		total += n
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, total, nil
}

// DiskUsageBytes returns the total size in bytes of the given files or
// directories. Missing paths count as 0; other errors are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		n, err := pathSize(p)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// pathSize sums the regular files under root, which may itself be a file.
func pathSize(root string) (size int64, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}
