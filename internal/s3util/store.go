// Package s3util adapts the AWS SDK S3 client to the blob-store operations
// line-sort needs: whole-object get and put for the Lambda, plus upload and
// presign helpers for the submit client.
package s3util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/line-sort/internal/linesort"
)

// textContentType is set on every object Store writes.
const textContentType = "text/plain; charset=utf-8"

// ObjectAPI is the subset of *s3.Client used by Store.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store implements linesort.Store on top of S3.
type Store struct {
	client ObjectAPI
}

// NewStore wraps client.
func NewStore(client ObjectAPI) *Store {
	return &Store{client: client}
}

// Get reads the whole object. A missing key returns an error wrapping
// linesort.ErrObjectNotFound.
func (s *Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Reading object from S3")
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: s3://%s/%s", linesort.ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return data, nil
}

// Put writes data as a UTF-8 text object, replacing any existing object.
func (s *Store) Put(ctx context.Context, bucket, key string, data []byte) error {
	log.Debug().Str("bucket", bucket).Str("key", key).Int("size", len(data)).Msg("Writing object to S3")
	contentType := textContentType
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
		Tagging:     ProjectTagging(),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject: %w", err)
	}
	return nil
}
