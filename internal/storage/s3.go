package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner is implemented by *s3.PresignClient.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store keeps objects under <slug(folder)>/<uuid>/<name>.  Links are
// presigned GET URLs valid for ttl.
type S3Store struct {
	client  S3API
	presign Presigner
	bucket  string
	ttl     time.Duration
}

func NewS3Store(client *s3.Client, bucket string, ttl time.Duration) *S3Store {
	return NewS3StoreWith(client, s3.NewPresignClient(client), bucket, ttl)
}

func NewS3StoreWith(client S3API, presign Presigner, bucket string, ttl time.Duration) *S3Store {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &S3Store{client: client, presign: presign, bucket: bucket, ttl: ttl}
}

// Folder maps a folder name to its key prefix.  S3 has no folders to create.
func (s *S3Store) Folder(_ context.Context, name string) (string, error) {
	return slug.Make(name), nil
}

func (s *S3Store) Upload(ctx context.Context, obj Object) (File, error) {
	if len(obj.Data) == 0 {
		return File{}, ErrEmptyObject
	}
	prefix, _ := s.Folder(ctx, obj.Folder)
	key := path.Join(prefix, uuid.NewString(), obj.Name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(obj.Data),
		ContentType:   aws.String(obj.MimeType),
		ContentLength: aws.Int64(int64(len(obj.Data))),
	})
	if err != nil {
		return File{}, fmt.Errorf("s3 put %s: %w", key, err)
	}
	view, err := s.link(ctx, key, "")
	if err != nil {
		return File{}, err
	}
	download, err := s.link(ctx, key, fmt.Sprintf("attachment; filename=%q", obj.Name))
	if err != nil {
		return File{}, err
	}
	return File{ID: key, ViewLink: view, DownloadLink: download}, nil
}

func (s *S3Store) link(ctx context.Context, key, disposition string) (string, error) {
	in := &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}
	if disposition != "" {
		in.ResponseContentDisposition = aws.String(disposition)
	}
	req, err := s.presign.PresignGetObject(ctx, in, func(o *s3.PresignOptions) {
		o.Expires = s.ttl
	})
	if err != nil {
		return "", fmt.Errorf("s3 presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(id)})
	return err
}
