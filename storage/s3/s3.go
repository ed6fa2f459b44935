// Package s3 is the Amazon S3 storage backend.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	apperrors "github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderS3, func(cfg storage.Config, providerCfg any, log *logger.Logger) (storage.Store, error) {
		awsCfg, ok := providerCfg.(aws.Config)
		if !ok {
			return nil, fmt.Errorf("s3: expected aws.Config, got %T", providerCfg)
		}
		return New(awsCfg, cfg, log), nil
	})
}

// API is the subset of the S3 client the store uses.
type API interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
}

// Store implements storage.Store on one S3 bucket.
type Store struct {
	api     API
	bucket  string
	maxSize int64
	log     *logger.Logger
}

// New creates an S3 store from a resolved aws.Config.
func New(awsCfg aws.Config, cfg storage.Config, log *logger.Logger) *Store {
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return NewWithAPI(client, cfg, log)
}

// NewWithAPI creates a store over any API implementation.
func NewWithAPI(api API, cfg storage.Config, log *logger.Logger) *Store {
	cfg.ApplyDefaults()
	return &Store{api: api, bucket: cfg.Bucket, maxSize: cfg.MaxFileSize, log: log}
}

// Put uploads r to key. Non-seekable bodies are buffered (up to the size
// limit) because signed S3 uploads need a known length.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, contentType string) (storage.Ref, error) {
	body, size, err := s.seekable(r)
	if err != nil {
		return storage.Ref{}, apperrors.Transfer("upload", err)
	}

	in := &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return storage.Ref{}, apperrors.Transfer("upload", err)
	}

	ref := storage.Ref{Key: key, URI: storage.S3URI(s.bucket, key)}
	s.log.Debug("object stored", map[string]interface{}{"uri": ref.URI, "bytes": size})
	return ref, nil
}

func (s *Store) seekable(r io.Reader) (io.ReadSeeker, int64, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		size, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, err
		}
		if s.maxSize > 0 && size > s.maxSize {
			return nil, 0, storage.ErrTooLarge
		}
		if _, err := rs.Seek(0, io.SeekStart); err != nil {
			return nil, 0, err
		}
		return rs, size, nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, storage.LimitReader(r, s.maxSize)); err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil
}

// Open streams the object at an s3:// URI. Any bucket named in the URI is
// honoured, so artifacts written by other services can be read.
func (s *Store) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	loc, err := storage.ParseURI(uri)
	if err != nil {
		return nil, apperrors.Transfer("open", err)
	}
	if loc.Scheme != "s3" {
		return nil, apperrors.Transfer("open", fmt.Errorf("s3: cannot open %q", uri))
	}

	out, err := s.api.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, apperrors.Transfer("open", err)
	}
	return out.Body, nil
}

// Delete removes key. S3 reports success for missing keys.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperrors.Transfer("delete", err)
	}
	return nil
}

// Exists checks key with a HEAD request.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, apperrors.Transfer("head", err)
}

// Ping checks the bucket is reachable with the configured credentials.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Pinger = (*Store)(nil)
)
