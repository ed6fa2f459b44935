// Package local is a filesystem storage backend for development and tests.
// Objects live under a base directory and are addressed with file:// URIs.
package local

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderLocal, func(cfg storage.Config, _ any, log *logger.Logger) (storage.Store, error) {
		return New(cfg.BasePath, cfg.MaxFileSize, log)
	})
}

// Store implements storage.Store on the local filesystem.
type Store struct {
	basePath string
	maxSize  int64
	log      *logger.Logger
}

// New creates a store rooted at basePath, creating the directory if needed.
func New(basePath string, maxSize int64, log *logger.Logger) (*Store, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("local: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("local: create base directory: %w", err)
	}
	return &Store{basePath: abs, maxSize: maxSize, log: log}, nil
}

func (s *Store) resolve(key string) (string, error) {
	full := filepath.Join(s.basePath, filepath.Clean("/"+key))
	if !strings.HasPrefix(full, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("local: key %q escapes base path", key)
	}
	return full, nil
}

// Put writes r to key through a temp file and rename, so readers never
// observe a half-written object.
func (s *Store) Put(_ context.Context, key string, r io.Reader, _ string) (storage.Ref, error) {
	full, err := s.resolve(key)
	if err != nil {
		return storage.Ref{}, apperrors.Transfer("upload", err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return storage.Ref{}, apperrors.Transfer("upload", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".put-*")
	if err != nil {
		return storage.Ref{}, apperrors.Transfer("upload", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, storage.LimitReader(r, s.maxSize))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return storage.Ref{}, apperrors.Transfer("upload", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return storage.Ref{}, apperrors.Transfer("upload", err)
	}

	ref := storage.Ref{Key: key, URI: (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String()}
	s.log.Debug("object stored", map[string]interface{}{"uri": ref.URI, "bytes": n})
	return ref, nil
}

// Open reads a file:// URI. Paths outside the base directory are allowed
// so fixtures can be read in place.
func (s *Store) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	loc, err := storage.ParseURI(uri)
	if err != nil {
		return nil, apperrors.Transfer("open", err)
	}
	if loc.Scheme != "file" {
		return nil, apperrors.Transfer("open", fmt.Errorf("local: cannot open %q", uri))
	}
	f, err := os.Open(filepath.FromSlash(loc.Key))
	if err != nil {
		return nil, apperrors.Transfer("open", err)
	}
	return f, nil
}

// Delete removes key. A missing file is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return apperrors.Transfer("delete", err)
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return apperrors.Transfer("delete", err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	full, err := s.resolve(key)
	if err != nil {
		return false, apperrors.Transfer("head", err)
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, apperrors.Transfer("head", err)
	}
	return true, nil
}

// Ping checks the base directory is still there.
func (s *Store) Ping(_ context.Context) error {
	_, err := os.Stat(s.basePath)
	return err
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Pinger = (*Store)(nil)
)
