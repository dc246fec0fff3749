package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Remover deletes stored files by their repository-relative path.
type Remover interface {
	Remove(path string) error
}

// FileStore keeps uploaded files under a single root directory. It only
// handles cleanup; uploads are written by the media pipeline in front of the
// API.
type FileStore struct {
	root string
}

// NewFileStore constructs a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Remove deletes the file at the given relative path. Missing files are not
// an error; a cover or material may have been cleaned up already. Paths
// escaping the root are rejected.
func (s *FileStore) Remove(path string) error {
	full := filepath.Join(s.root, filepath.Clean("/"+path))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return errors.New("path outside storage root")
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
