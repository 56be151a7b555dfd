package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/bryanwahyu/testresult-ingest/internal/domain/testresults"
)

// Options untuk koneksi MinIO / S3
type Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Store is the object storage gateway. One instance is built at startup and
// injected wherever storage is needed.
type Store struct {
	client     *minio.Client
	core       *minio.Core
	bucketName string
	region     string
}

// New buat koneksi MinIO dan pastikan bucket ada
func New(ctx context.Context, opts Options) (*Store, error) {
	s, err := newStore(opts)
	if err != nil {
		return nil, err
	}

	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", s.bucketName, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", s.bucketName, err)
		}
	}
	return s, nil
}

// newStore builds the client without touching the network. With a region set,
// presigning is computed locally.
func newStore(opts Options) (*Store, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, err
	}
	return &Store{
		client:     cli,
		core:       &minio.Core{Client: cli},
		bucketName: opts.Bucket,
		region:     opts.Region,
	}, nil
}

// PresignPut signs a PUT for key. Content-Type is part of the signature, so
// the client must send the same header.
func (s *Store) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	headers := http.Header{}
	if contentType != "" {
		headers.Set("Content-Type", contentType)
	}
	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucketName, key, expiry, nil, headers)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// PresignGet signs a GET; downloadName becomes the attachment file name.
func (s *Store) PresignGet(ctx context.Context, key string, expiry time.Duration, downloadName string) (string, error) {
	params := url.Values{}
	if downloadName != "" {
		params.Set("response-content-disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, expiry, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Put uploads body synchronously (legacy direct path).
func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if size <= 0 {
		size = -1
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// Delete removes key. Removing a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
}

// StartMultipart returns the upload id of a new multipart upload.
func (s *Store) StartMultipart(ctx context.Context, key, contentType string) (string, error) {
	return s.core.NewMultipartUpload(ctx, s.bucketName, key, minio.PutObjectOptions{ContentType: contentType})
}

// PresignPart signs the PUT for one part of a multipart upload.
func (s *Store) PresignPart(ctx context.Context, key, uploadID string, partNumber int, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("partNumber", strconv.Itoa(partNumber))
	params.Set("uploadId", uploadID)
	u, err := s.client.Presign(ctx, http.MethodPut, s.bucketName, key, expiry, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// CompleteMultipart stitches uploaded parts into the final object.
func (s *Store) CompleteMultipart(ctx context.Context, key, uploadID string, parts []domain.CompletedPart) error {
	cps := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		cps = append(cps, minio.CompletePart{PartNumber: p.PartNumber, ETag: p.ETag})
	}
	_, err := s.core.CompleteMultipartUpload(ctx, s.bucketName, key, uploadID, cps, minio.PutObjectOptions{})
	return err
}

// AbortMultipart discards the parts of an unfinished upload.
func (s *Store) AbortMultipart(ctx context.Context, key, uploadID string) error {
	return s.core.AbortMultipartUpload(ctx, s.bucketName, key, uploadID)
}

// Check implements the health checker: the bucket must be reachable.
func (s *Store) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucketName)
	}
	return nil
}
