package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/gridstore/blobstore"
)

// Option configures a Store.
type Option func(*Store)

// WithPrefix places every blob under prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

// WithUploadConfig overrides DefaultUploadConfig.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(s *Store) {
		s.upload = cfg
	}
}

// Store implements blobstore.Store on an S3 bucket. A single PutObject is
// atomic, so region writes never expose partial objects.
type Store struct {
	client   Client
	bucket   string
	prefix   string
	upload   UploadConfig
	uploader *manager.Uploader
}

var _ blobstore.Store = (*Store)(nil)

// NewStore returns a store over bucket.
func NewStore(client Client, bucket string, opts ...Option) *Store {
	s := &Store{
		client: client,
		bucket: bucket,
		upload: DefaultUploadConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.uploader = newUploader(client, s.upload)
	return s
}

// Bucket returns the bucket name.
func (s *Store) Bucket() string { return s.bucket }

func (s *Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, fmt.Errorf("s3: get %s: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if err := blobstore.ValidateName(name); err != nil {
		return err
	}
	key := s.key(name)

	if int64(len(data)) >= s.upload.Threshold {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return fmt.Errorf("s3: upload %s: %w", name, err)
		}
		return nil
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(data),
		ContentLength:     aws.Int64(int64(len(data))),
		ChecksumAlgorithm: types.ChecksumAlgorithmCrc32c,
		ChecksumCRC32C:    aws.String(checksumCRC32C(data)),
	})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", name, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3: delete %s: %w", name, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3: head %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	root := ""
	if s.prefix != "" {
		root = s.prefix + "/"
	}

	var names []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(root + prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), root)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}
	return names, nil
}
