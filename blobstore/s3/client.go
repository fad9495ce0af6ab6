package s3

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/gridstore/internal/hash"
)

// Client is the subset of *s3.Client used by Store.
type Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var _ Client = (*s3.Client)(nil)

// UploadConfig tunes multipart uploads of large regions.
type UploadConfig struct {
	// Threshold is the size from which Put switches to multipart upload.
	Threshold int64
	// PartSize is the multipart part size.
	PartSize int64
	// Concurrency is the number of parts uploaded in parallel.
	Concurrency int
}

// DefaultUploadConfig returns 8MiB parts, five at a time, from 16MiB up.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		Threshold:   16 << 20,
		PartSize:    8 << 20,
		Concurrency: 5,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = cfg.PartSize
		u.Concurrency = cfg.Concurrency
	})
}

// checksumCRC32C encodes a CRC32C the way S3 expects: base64 of the
// big-endian sum.
func checksumCRC32C(data []byte) string {
	sum := hash.CRC32C(data)
	return base64.StdEncoding.EncodeToString([]byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)})
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}
