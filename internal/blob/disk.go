// Package blob stores screenshot files on local disk. Handles are relative
// paths of the form "<user_id>/<random>.png" and are treated as opaque by the
// rest of the system.
package blob

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidHandle is returned for handles that escape the blob root.
var ErrInvalidHandle = errors.New("invalid blob handle")

type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Save writes content under a fresh random name inside the user's directory
// and returns the handle.
func (s *Store) Save(userID string, content []byte) (string, error) {
	name, err := randomName()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	handle := filepath.ToSlash(filepath.Join(userID, name))
	if err := os.WriteFile(filepath.Join(s.root, filepath.FromSlash(handle)), content, 0o644); err != nil {
		return "", err
	}
	return handle, nil
}

// Delete removes the file behind handle. Deleting a missing handle is not an
// error.
func (s *Store) Delete(handle string) error {
	path, err := s.resolve(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists reports whether the handle still resolves to a stored file.
func (s *Store) Exists(handle string) bool {
	path, err := s.resolve(handle)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Open returns the content behind a handle.
func (s *Store) Open(handle string) ([]byte, error) {
	path, err := s.resolve(handle)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (s *Store) resolve(handle string) (string, error) {
	if handle == "" || strings.Contains(handle, "..") || strings.HasPrefix(handle, "/") {
		return "", ErrInvalidHandle
	}
	return filepath.Join(s.root, filepath.FromSlash(handle)), nil
}

func randomName() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b) + ".png", nil
}
