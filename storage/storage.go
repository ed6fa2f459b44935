package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Ref points at a stored object. URI is the scheme-qualified location other
// services accept (s3://bucket/key, file:///path).
type Ref struct {
	Key string
	URI string
}

// Store is the blob store contract.
type Store interface {
	// Put streams r to key, replacing any previous object.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Ref, error)

	// Open returns a reader for the object at uri. The caller closes it.
	// uri must use the store's own scheme.
	Open(ctx context.Context, uri string) (io.ReadCloser, error)

	// Delete removes key. A missing object is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// Pinger is implemented by stores that can check their backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Location is a parsed object URI.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

// ParseURI splits s3://bucket/key and file:///path URIs. For file URIs the
// key is the absolute path and Bucket is empty.
func ParseURI(uri string) (Location, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("storage: parse uri %q: %w", uri, err)
	}
	switch u.Scheme {
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("storage: s3 uri %q needs bucket and key", uri)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Key: key}, nil
	case "file":
		if u.Path == "" {
			return Location{}, fmt.Errorf("storage: file uri %q has no path", uri)
		}
		return Location{Scheme: u.Scheme, Key: u.Path}, nil
	default:
		return Location{}, fmt.Errorf("storage: unsupported uri scheme %q", u.Scheme)
	}
}

// S3URI formats an s3:// URI.
func S3URI(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimPrefix(key, "/")
}

// ErrTooLarge is returned when a Put body exceeds the configured limit.
var ErrTooLarge = errors.New("storage: object exceeds max file size")

// LimitReader returns a reader that fails with ErrTooLarge once more than
// limit bytes are read. A non-positive limit disables the check.
func LimitReader(r io.Reader, limit int64) io.Reader {
	if limit <= 0 {
		return r
	}
	return &limitedReader{r: r, remaining: limit}
}

type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
