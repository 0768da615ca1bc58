package service

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidKey rejects storage keys that escape the root.
var ErrInvalidKey = errors.New("invalid storage key")

// MediaStore keeps generated media and returns its public URL.
type MediaStore interface {
	Save(ctx context.Context, key string, data []byte) (string, error)
}

// LocalStorage writes files below Root; the HTTP server exposes Root at
// BaseURL.
type LocalStorage struct {
	Root    string
	BaseURL string
}

// NewLocalStorage returns a LocalStorage rooted at dir.
func NewLocalStorage(dir, baseURL string) *LocalStorage {
	return &LocalStorage{Root: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

// Save writes data atomically under key.
func (s *LocalStorage) Save(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	dst := filepath.Join(s.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return s.BaseURL + "/" + clean, nil
}
