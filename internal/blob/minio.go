// Package blob stores screenshot images in an S3-compatible object store.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/HH-pro/glazeme-dashboard-sub000/internal/util"
)

// ProgressFunc receives upload progress as bytes transferred so far out of
// the total. total is -1 when the size is unknown.
type ProgressFunc func(transferred, total int64)

// Upload is the result of a successful blob write.
type Upload struct {
	URL    string
	BlobID string
}

// MinioStore implements blob storage against MinIO or any S3-compatible
// endpoint.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL overrides the endpoint in returned object URLs, for setups
	// where clients reach the store through a CDN or reverse proxy.
	PublicURL string
}

// NewMinioStore connects to the object store and ensures the bucket exists.
func NewMinioStore(ctx context.Context, opts Options) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(checkCtx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(checkCtx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}

	publicURL := strings.TrimSuffix(opts.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if opts.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, opts.Endpoint, opts.Bucket)
	}

	return &MinioStore{client: client, bucket: opts.Bucket, publicURL: publicURL}, nil
}

// Put uploads a blob into the given folder and reports progress through
// onProgress (which may be nil). The blob ID is server-assigned; the original
// filename only contributes its extension.
func (s *MinioStore) Put(ctx context.Context, reader io.Reader, size int64, folder, filename, contentType string, onProgress ProgressFunc) (Upload, error) {
	ext := strings.ToLower(path.Ext(filename))
	blobID := util.NewID() + ext
	if folder != "" {
		blobID = path.Join(folder, blobID)
	}

	source := reader
	if onProgress != nil {
		source = &progressReader{reader: reader, total: size, onProgress: onProgress}
	}

	_, err := s.client.PutObject(ctx, s.bucket, blobID, source, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Upload{}, fmt.Errorf("put blob %s: %w", blobID, err)
	}

	return Upload{
		URL:    s.publicURL + "/" + blobID,
		BlobID: blobID,
	}, nil
}

// Delete removes a blob. Removing an absent blob is not an error.
func (s *MinioStore) Delete(ctx context.Context, blobID string) error {
	err := s.client.RemoveObject(ctx, s.bucket, blobID, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", blobID, err)
	}
	return nil
}

type progressReader struct {
	reader      io.Reader
	total       int64
	transferred int64
	onProgress  ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.transferred += int64(n)
		r.onProgress(r.transferred, r.total)
	}
	return n, err
}
