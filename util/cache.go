package util

import (
	"compress/flate"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

func fullCachePath(baseDir, path string) string {
	return filepath.Join(baseDir, path)
}

// CacheStoreObject msgpack-encodes obj and flate-compresses it to a
// file under baseDir, creating any missing directories.
func CacheStoreObject(baseDir, path string, obj any) error {
	p := fullCachePath(baseDir, path)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}

	f, err := os.Create(p)
	if err != nil {
		return err
	}
	defer f.Close()

	fw, err := flate.NewWriter(f, flate.BestSpeed)
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(fw).Encode(obj); err != nil {
		return err
	}
	return fw.Close()
}

// CacheRetrieveObject decodes an object previously written by
// CacheStoreObject and returns its modification time.
func CacheRetrieveObject(baseDir, path string, obj any) (time.Time, error) {
	p := fullCachePath(baseDir, path)
	f, err := os.Open(p)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return time.Time{}, err
	}

	fr := flate.NewReader(f)
	defer fr.Close()

	return fi.ModTime(), msgpack.NewDecoder(fr).Decode(obj)
}
