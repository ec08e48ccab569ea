// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package imagestore keeps profile images in S3-compatible object storage.
package imagestore

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/auth"
)

var _ auth.ImageStore = (*S3Store)(nil)

// DefaultPrefix is the key prefix for profile images.
const DefaultPrefix = "profile-images"

// API is the part of *s3.Client used by S3Store.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config describes the bucket and how to reach it.
type Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	// AccessKey and SecretKey select static credentials. When empty the
	// default AWS credential chain is used.
	AccessKey string
	SecretKey string
	// UsePathStyle is required by MinIO and most self-hosted endpoints.
	UsePathStyle bool
}

// NewClient builds an S3 client from cfg.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, oops.Code("IMAGESTORE_CONFIG_FAILED").
			With("operation", "load aws config").
			With("region", cfg.Region).
			Wrap(err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// S3Store implements auth.ImageStore. Each image is one object keyed by
// its ID.
type S3Store struct {
	api    API
	bucket string
	prefix string
	newID  func() uuid.UUID
}

// New creates an S3Store writing to bucket under prefix.
func New(api API, bucket, prefix string) (*S3Store, error) {
	if api == nil {
		return nil, oops.Code("IMAGESTORE_CONFIG_INVALID").Errorf("s3 client is required")
	}
	if bucket == "" {
		return nil, oops.Code("IMAGESTORE_CONFIG_INVALID").Errorf("bucket is required")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &S3Store{api: api, bucket: bucket, prefix: prefix, newID: uuid.New}, nil
}

// Open builds an S3 client from cfg and returns a store over it.
func Open(ctx context.Context, cfg Config) (*S3Store, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(client, cfg.Bucket, cfg.Prefix)
}

// Key returns the object key of an image.
func (s *S3Store) Key(id uuid.UUID) string {
	return path.Join(s.prefix, id.String())
}

// Store uploads img under a fresh ID.
func (s *S3Store) Store(ctx context.Context, img auth.Image) (uuid.UUID, error) {
	id := s.newID()
	if err := s.put(ctx, id, img); err != nil {
		return uuid.Nil, oops.Code("IMAGE_STORE_FAILED").
			With("operation", "put object").
			With("photo_id", id.String()).
			Wrap(err)
	}
	return id, nil
}

// Replace overwrites the object of an existing image.
func (s *S3Store) Replace(ctx context.Context, id uuid.UUID, img auth.Image) error {
	if err := s.put(ctx, id, img); err != nil {
		return oops.Code("IMAGE_REPLACE_FAILED").
			With("operation", "put object").
			With("photo_id", id.String()).
			Wrap(err)
	}
	return nil
}

// Delete removes an image. Deleting a missing object succeeds.
func (s *S3Store) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(id)),
	})
	if err != nil {
		return oops.Code("IMAGE_DELETE_FAILED").
			With("operation", "delete object").
			With("photo_id", id.String()).
			Wrap(err)
	}
	return nil
}

func (s *S3Store) put(ctx context.Context, id uuid.UUID, img auth.Image) error {
	body, size, err := seekable(img)
	if err != nil {
		return err
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.Key(id)),
		Body:          body,
		ContentType:   aws.String(img.ContentType),
		ContentLength: aws.Int64(size),
	})
	return err
}

// seekable returns a body the SDK can sign and retry, buffering it if needed.
func seekable(img auth.Image) (io.ReadSeeker, int64, error) {
	if img.Body == nil {
		return bytes.NewReader(nil), 0, nil
	}
	if rs, ok := img.Body.(io.ReadSeeker); ok && img.Size > 0 {
		return rs, img.Size, nil
	}
	data, err := io.ReadAll(img.Body)
	if err != nil {
		return nil, 0, oops.With("operation", "read image body").Wrap(err)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}
