package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures an S3-compatible backend.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3Store stores rowset payloads in an S3-compatible bucket via minio-go.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store creates an S3Store from config.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	// minio-go expects host:port, not a URL.
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	if strings.HasPrefix(endpoint, "https://") {
		endpoint = strings.TrimPrefix(endpoint, "https://")
		secure = true
	} else if strings.HasPrefix(endpoint, "http://") {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, s.mapError(err)
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, s.mapError(err)
	}
	return obj, objectInfoFromStat(key, stat), nil
}

func (s *S3Store) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return objectInfoFromStat(key, stat), nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64) (*ObjectInfo, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return nil, s.mapError(err)
	}
	return uploadInfo(key, info), nil
}

func (s *S3Store) PutIfAbsent(ctx context.Context, key string, body io.Reader, size int64) (*ObjectInfo, error) {
	opts := minio.PutObjectOptions{ContentType: "application/octet-stream"}
	opts.SetMatchETagExcept("*")
	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, opts)
	if err != nil {
		mapped := s.mapError(err)
		if mapped == ErrAlreadyExists {
			return nil, fmt.Errorf("put %s: %w", key, ErrAlreadyExists)
		}
		return nil, mapped
	}
	return uploadInfo(key, info), nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	listOpts := minio.ListObjectsOptions{}
	maxKeys := 1000
	if opts != nil {
		listOpts.Prefix = opts.Prefix
		listOpts.StartAfter = opts.Marker
		if opts.MaxKeys > 0 {
			listOpts.MaxKeys = opts.MaxKeys
			maxKeys = opts.MaxKeys
		}
	}

	result := &ListResult{}
	for obj := range s.client.ListObjects(ctx, s.bucket, listOpts) {
		if obj.Err != nil {
			return nil, s.mapError(obj.Err)
		}
		result.Objects = append(result.Objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         strings.Trim(obj.ETag, "\""),
			LastModified: obj.LastModified,
		})
		if len(result.Objects) >= maxKeys {
			result.IsTruncated = true
			result.NextMarker = obj.Key
			break
		}
	}
	return result, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (s *S3Store) mapError(err error) error {
	if err == nil {
		return nil
	}
	errResp := minio.ToErrorResponse(err)
	switch {
	case errResp.Code == "NoSuchKey" || errResp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case errResp.Code == "PreconditionFailed" || errResp.StatusCode == http.StatusPreconditionFailed:
		return ErrAlreadyExists
	case errResp.StatusCode == http.StatusConflict:
		return ErrAlreadyExists
	}
	return err
}

func objectInfoFromStat(key string, stat minio.ObjectInfo) *ObjectInfo {
	return &ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ETag:         strings.Trim(stat.ETag, "\""),
		LastModified: stat.LastModified,
	}
}

func uploadInfo(key string, info minio.UploadInfo) *ObjectInfo {
	return &ObjectInfo{
		Key:          key,
		Size:         info.Size,
		ETag:         strings.Trim(info.ETag, "\""),
		LastModified: info.LastModified,
	}
}
