package storage

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// IndexDiskUsage returns the bytes used by the files of an index directory,
// including the SQLite journal and the vector files. A missing directory uses 0.
func IndexDiskUsage(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// removed by a concurrent commit
				return nil
			}
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
