// Package miniostore implements the sort store against an S3-compatible
// endpoint (MinIO, LocalStack) through minio-go, for running the sort
// operation outside AWS against real object storage.
package miniostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/fpang/line-sort/internal/linesort"
)

// Options selects the endpoint and credentials.
type Options struct {
	Endpoint  string // host:port, no scheme
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
}

// objectAPI is the part of *minio.Client the store uses, with reads
// returned as plain io.ReadCloser.
type objectAPI interface {
	getObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	putObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) error
}

type minioClient struct {
	c *minio.Client
}

func (m minioClient) getObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return m.c.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
}

func (m minioClient) putObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) error {
	_, err := m.c.PutObject(ctx, bucket, key, r, size, opts)
	return err
}

// Store implements linesort.Store over minio-go.
type Store struct {
	client objectAPI
}

// New creates a MinIO client for opts. No request is made until the first
// Get or Put.
func New(opts Options) (*Store, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Store{client: minioClient{c: client}}, nil
}

// Get reads the whole object. minio-go defers the request until the first
// read, so a missing key surfaces from ReadAll.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Reading object from S3-compatible endpoint")
	obj, err := s.client.getObject(ctx, bucket, key)
	if err != nil {
		return nil, mapError(err, bucket, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(err, bucket, key)
	}
	return data, nil
}

// Put writes data as a tagged UTF-8 text object.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte) error {
	log.Debug().Str("bucket", bucket).Str("key", key).Int("size", len(data)).Msg("Writing object to S3-compatible endpoint")
	err := s.client.putObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
		UserTags:    map[string]string{"Project": "line-sort"},
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func mapError(err error, bucket, key string) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket") {
		return fmt.Errorf("%w: s3://%s/%s", linesort.ErrObjectNotFound, bucket, key)
	}
	return fmt.Errorf("get object: %w", err)
}
