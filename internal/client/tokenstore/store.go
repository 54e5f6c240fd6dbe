// Package tokenstore keeps the CLI access token on disk between runs.
package tokenstore

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/dmitrijs2005/diagrams/internal/filex"
)

type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the saved token, or "" when nothing has been saved.
func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes token readable by the owner only.
func (s *FileStore) Save(token string) error {
	if _, err := filex.EnsureParentDir(s.path); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(token), 0o600)
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
