package blockstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"bt-go/internal/errs"
)

// s3API is the subset of *s3.Client this package calls, so tests can
// substitute a fake without standing up real AWS credentials.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3BlockStore stores sealed records as individual S3 objects, keyed by
// the same two-level hex-prefix sharding as the filesystem backend, so
// that object listing pages sensibly at scale. Uploads go through
// feature/s3/manager so a single PutIfAbsent call works for record sizes
// well beyond S3's single-PUT limit without the caller having to think
// about multipart semantics.
type S3BlockStore struct {
	client   s3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3BlockStore builds a block store backed by bucket, with all object
// keys rooted under prefix+"blocks/".
func NewS3BlockStore(client *s3.Client, bucket, prefix string) *S3BlockStore {
	return &S3BlockStore{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}
}

func (s *S3BlockStore) key(hash string) (string, error) {
	if len(hash) < 4 {
		return "", fmt.Errorf("hash %q too short to shard: %w", hash, errs.ErrMalformedRecord)
	}
	return fmt.Sprintf("%sblocks/%s/%s/%s", s.prefix, hash[0:2], hash[2:4], hash), nil
}

func (s *S3BlockStore) PutIfAbsent(hash string, record []byte) error {
	key, err := s.key(hash)
	if err != nil {
		return err
	}

	exists, err := s.Exists(hash)
	if err != nil {
		return err
	}
	if exists {
		return nil // idempotent (P9)
	}

	_, err = s.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(record),
	})
	if err != nil {
		return fmt.Errorf("uploading block %s: %w", hash, errs.ErrTransport)
	}
	return nil
}

func (s *S3BlockStore) Get(hash string) ([]byte, error) {
	key, err := s.key(hash)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("block %s: %w", hash, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching block %s: %w", hash, errs.ErrTransport)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading block %s: %w", hash, err)
	}
	return data, nil
}

func (s *S3BlockStore) Exists(hash string) (bool, error) {
	key, err := s.key(hash)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking block %s: %w", hash, errs.ErrTransport)
	}
	return true, nil
}

func (s *S3BlockStore) Iter(fn func(hash string) error) error {
	listPrefix := s.prefix + "blocks/"

	var continuation *string
	for {
		out, err := s.client.ListObjectsV2(context.Background(), &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(listPrefix),
			ContinuationToken: continuation,
		})
		if err != nil {
			return fmt.Errorf("listing blocks: %w", errs.ErrTransport)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			hash := key[len(listPrefix)+len("aa/bb/"):]
			if err := fn(hash); err != nil {
				return err
			}
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		continuation = out.NextContinuationToken
	}
	return nil
}

func (s *S3BlockStore) Unlink(hash string) error {
	key, err := s.key(hash)
	if err != nil {
		return err
	}

	exists, err := s.Exists(hash)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("block %s: %w", hash, errs.ErrNotFound)
	}

	_, err = s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("unlinking block %s: %w", hash, errs.ErrTransport)
	}
	return nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

var _ BlockStore = (*S3BlockStore)(nil)
