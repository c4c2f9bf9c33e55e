package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"pinvault/internal/pv"
)

// fakeS3 keeps objects in a map. Only single-part uploads are supported,
// which covers everything below the uploader's part size.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	bucket  string
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), bucket: bucket}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("multipart not supported")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestS3BlobStore_RoundTrip(t *testing.T) {
	client := newFakeS3("vault-bucket")
	s := NewS3BlobStoreWithClient(client, "vault-bucket", "phone-1")

	if err := s.Put(pv.AreaBlobs, "item-1", strings.NewReader("ciphertext")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if _, ok := client.objects["phone-1/blobs/item-1"]; !ok {
		t.Errorf("object key not found, have %v", client.objects)
	}
	if got := readBlob(t, s, pv.AreaBlobs, "item-1"); got != "ciphertext" {
		t.Errorf("content = %q, want %q", got, "ciphertext")
	}

	ok, err := s.Exists(pv.AreaBlobs, "item-1")
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v, want true, nil", ok, err)
	}

	if err := s.Delete(pv.AreaBlobs, "item-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	ok, err = s.Exists(pv.AreaBlobs, "item-1")
	if err != nil || ok {
		t.Errorf("Exists() after Delete = %v, %v, want false, nil", ok, err)
	}
}

func TestS3BlobStore_OpenMissing(t *testing.T) {
	s := NewS3BlobStoreWithClient(newFakeS3("b"), "b", "")
	if _, err := s.Open(pv.AreaThumbs, "missing"); !errors.Is(err, pv.ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestS3BlobStore_Locate(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "with prefix", prefix: "phone-1", want: "s3://b/phone-1/thumbs/item-1"},
		{name: "without prefix", prefix: "", want: "s3://b/thumbs/item-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewS3BlobStoreWithClient(newFakeS3("b"), "b", tt.prefix)
			if got := s.Locate(pv.AreaThumbs, "item-1"); got != tt.want {
				t.Errorf("Locate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestS3BlobStore_ValidateSetup(t *testing.T) {
	client := newFakeS3("vault-bucket")

	if err := NewS3BlobStoreWithClient(client, "vault-bucket", "").ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
	if err := NewS3BlobStoreWithClient(client, "other", "").ValidateSetup(); err == nil {
		t.Error("ValidateSetup() expected error for unknown bucket")
	}
}
