package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"pinvault/internal/config"
	"pinvault/internal/pv"
)

// S3API is the subset of the S3 client used by S3BlobStore. Uploads go
// through the multipart manager, so the upload calls are included.
type S3API interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3BlobStore stores blobs as objects keyed <prefix>/<area>/<id>. Uploads
// stream through the multipart manager, so content of any size is never
// buffered whole. S3 object writes are atomic, which gives Put its
// all-or-nothing replace.
type S3BlobStore struct {
	client   S3API
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3BlobStore creates a store using the default AWS credential chain, or
// static credentials when the config carries them.
func NewS3BlobStore(ctx context.Context, cfg config.BlobStoreConfig) (*S3BlobStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3BlobStoreWithClient(client, cfg.S3Bucket, cfg.S3Prefix), nil
}

// NewS3BlobStoreWithClient wraps an existing client.
func NewS3BlobStoreWithClient(client S3API, bucket, prefix string) *S3BlobStore {
	return &S3BlobStore{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}
}

// Put uploads r as <area>/<id>.
func (s *S3BlobStore) Put(area pv.Area, id string, r io.Reader) error {
	if err := checkKey(area, id); err != nil {
		return err
	}
	key := s.key(area, id)
	_, err := s.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return &pv.IOError{Op: "upload", Path: key, Err: err}
	}
	return nil
}

// Open streams the object body. The caller must close it.
func (s *S3BlobStore) Open(area pv.Area, id string) (io.ReadCloser, error) {
	if err := checkKey(area, id); err != nil {
		return nil, err
	}
	key := s.key(area, id)
	out, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%s/%s: %w", area, id, pv.ErrNotFound)
		}
		return nil, &pv.IOError{Op: "get", Path: key, Err: err}
	}
	return out.Body, nil
}

// Delete removes the object. S3 deletes of missing keys succeed.
func (s *S3BlobStore) Delete(area pv.Area, id string) error {
	if err := checkKey(area, id); err != nil {
		return err
	}
	key := s.key(area, id)
	_, err := s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isS3NotFound(err) {
		return &pv.IOError{Op: "delete", Path: key, Err: err}
	}
	return nil
}

// Exists issues a HEAD request for the object.
func (s *S3BlobStore) Exists(area pv.Area, id string) (bool, error) {
	if err := checkKey(area, id); err != nil {
		return false, err
	}
	key := s.key(area, id)
	_, err := s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, &pv.IOError{Op: "head", Path: key, Err: err}
	}
	return true, nil
}

// Locate returns the s3:// URL of <area>/<id>.
func (s *S3BlobStore) Locate(area pv.Area, id string) string {
	return "s3://" + s.bucket + "/" + s.key(area, id)
}

// ValidateSetup checks that the bucket is reachable with the configured credentials.
func (s *S3BlobStore) ValidateSetup() error {
	_, err := s.client.HeadBucket(context.Background(), &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", s.bucket, err)
	}
	return nil
}

func (s *S3BlobStore) key(area pv.Area, id string) string {
	return path.Join(s.prefix, string(area), id)
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// Compile-time check that S3BlobStore implements pv.BlobStore interface
var _ pv.BlobStore = (*S3BlobStore)(nil)
