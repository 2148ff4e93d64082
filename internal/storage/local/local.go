package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/metalens/metalens/internal/storage"
)

// Accessor serves the local filesystem behind the storage.Accessor contract.
// Keys are ordinary paths; List walks the prefix recursively when it names a
// directory, mirroring a recursive bucket listing.
type Accessor struct{}

func New() *Accessor {
	return &Accessor{}
}

func (a *Accessor) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	info, err := os.Stat(prefix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat %q: %w", prefix, err)
	}
	if !info.IsDir() {
		return []storage.ObjectInfo{{Key: filepath.ToSlash(prefix), Size: info.Size()}}, nil
	}

	var objects []storage.ObjectInfo
	err = filepath.WalkDir(prefix, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			return nil
		}
		fileInfo, err := entry.Info()
		if err != nil {
			return err
		}
		objects = append(objects, storage.ObjectInfo{Key: filepath.ToSlash(path), Size: fileInfo.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %q: %w", prefix, err)
	}
	return objects, nil
}

func (a *Accessor) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.FromSlash(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return data, nil
}

func (a *Accessor) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.FromSlash(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %q: %w", key, err)
	}
	return true, nil
}
