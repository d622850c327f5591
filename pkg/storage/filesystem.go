package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrBlobNotFound is returned when a storage id has no stored content.
var ErrBlobNotFound = errors.New("blob not found")

// ErrBlobTooLarge is returned when a stream exceeds the configured size cap.
var ErrBlobTooLarge = errors.New("blob exceeds size limit")

// ErrBlobExists is returned when a blob is already stored under the id. Blobs are write-once.
var ErrBlobExists = errors.New("blob already exists")

// LocalStorage keeps image blobs on disk under a base directory, one file per storage id.
type LocalStorage struct {
	baseDir string
	maxSize int64
}

// NewLocalStorage ensures the base directory exists and returns a handle.
// A non-positive maxSize disables the size cap.
func NewLocalStorage(baseDir string, maxSize int64) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, maxSize: maxSize}, nil
}

// SaveStream copies r into the blob for id and returns the number of bytes written.
// The commit is exclusive: when id is already stored, concurrently or earlier, it fails
// with ErrBlobExists and the stored blob is left untouched. Partially written blobs are
// removed on failure.
func (s *LocalStorage) SaveStream(id string, r io.Reader) (int64, error) {
	path, err := s.resolve(id)
	if err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(s.baseDir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	written, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("write blob: %w", err)
	}
	if s.maxSize > 0 && written > s.maxSize {
		return 0, ErrBlobTooLarge
	}
	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, ErrBlobExists
		}
		return 0, fmt.Errorf("commit blob: %w", err)
	}
	return written, nil
}

// Open returns a read-only handle for the stored blob.
func (s *LocalStorage) Open(id string) (*os.File, error) {
	path, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return file, nil
}

// Exists reports whether a blob is stored under id.
func (s *LocalStorage) Exists(id string) (bool, error) {
	path, err := s.resolve(id)
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob: %w", err)
	}
	return !info.IsDir(), nil
}

// Delete removes a stored blob if present.
func (s *LocalStorage) Delete(id string) error {
	path, err := s.resolve(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// storage ids are flat names; anything that could escape baseDir is rejected.
func (s *LocalStorage) resolve(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid storage id %q", id)
	}
	return filepath.Join(s.baseDir, id), nil
}
