package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jrsteele09/go-school-admin/internal/errors"
	"github.com/jrsteele09/go-school-admin/sessions"
)

var _ sessions.Storage = (*FileStorage)(nil)

// FileStorage keeps one file per key under a folder. Writes go to a temp file in the same
// folder which is then renamed over the target, so a value is always replaced whole.
type FileStorage struct {
	folder string
}

// New creates the folder (0700) if needed.
func New(folder string) (*FileStorage, error) {
	if folder == "" {
		return nil, fmt.Errorf("[FileStorage New] folder is required")
	}
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, fmt.Errorf("[FileStorage New] create folder: %w", err)
	}
	return &FileStorage{folder: folder}, nil
}

func (fs *FileStorage) Get(key string) (string, bool, error) {
	path, err := fs.path(key)
	if err != nil {
		return "", false, err
	}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[FileStorage Get] %w", err)
	}
	return string(b), true, nil
}

func (fs *FileStorage) Set(key, value string) error {
	path, err := fs.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(fs.folder, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("[FileStorage Set] create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStorage Set] write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStorage Set] sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[FileStorage Set] close: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("[FileStorage Set] chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("[FileStorage Set] rename: %w", err)
	}
	return nil
}

func (fs *FileStorage) Remove(key string) error {
	path, err := fs.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("[FileStorage Remove] %w", err)
	}
	return nil
}

func (fs *FileStorage) path(key string) (string, error) {
	if key == "" {
		return "", errors.ErrStorageKeyEmpty
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("[FileStorage] invalid key %q", key)
	}
	return filepath.Join(fs.folder, key+".json"), nil
}
