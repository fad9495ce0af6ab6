package s3

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/gridstore/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockS3Client) UploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*s3.UploadPartOutput), args.Error(1)
}

func (m *MockS3Client) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*s3.CreateMultipartUploadOutput), args.Error(1)
}

func (m *MockS3Client) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*s3.CompleteMultipartUploadOutput), args.Error(1)
}

func (m *MockS3Client) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*s3.AbortMultipartUploadOutput), args.Error(1)
}

func (m *MockS3Client) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*s3.ListObjectsV2Output), args.Error(1)
}

func (m *MockS3Client) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*s3.HeadObjectOutput), args.Error(1)
}

func (m *MockS3Client) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *MockS3Client) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(*s3.DeleteObjectOutput), args.Error(1)
}


func TestStore_PutSetsChecksum(t *testing.T) {
	m := new(MockS3Client)
	s := NewStore(m, "bucket", WithPrefix("/world/"))

	data := []byte("region")
	m.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "world/pv.1.ttp.lz4b" &&
			aws.ToString(in.ChecksumCRC32C) == checksumCRC32C(data) &&
			aws.ToInt64(in.ContentLength) == int64(len(data))
	})).Return(&s3.PutObjectOutput{}, nil)

	require.NoError(t, s.Put(context.Background(), "pv.1.ttp.lz4b", data))
	m.AssertExpectations(t)

	assert.ErrorIs(t, s.Put(context.Background(), "../x", data), blobstore.ErrInvalidName)
}

func TestStore_GetMapsNotFound(t *testing.T) {
	m := new(MockS3Client)
	s := NewStore(m, "bucket")

	m.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "missing"
	})).Return((*s3.GetObjectOutput)(nil), &types.NoSuchKey{})
	m.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "present"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("abc")))}, nil)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	got, err := s.Get(context.Background(), "present")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestStore_ExistsAndDelete(t *testing.T) {
	m := new(MockS3Client)
	s := NewStore(m, "bucket")

	m.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return aws.ToString(in.Key) == "a"
	})).Return(&s3.HeadObjectOutput{}, nil)
	m.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return aws.ToString(in.Key) == "b"
	})).Return((*s3.HeadObjectOutput)(nil), &types.NotFound{})
	m.On("DeleteObject", mock.Anything, mock.Anything).Return((*s3.DeleteObjectOutput)(nil), &types.NoSuchKey{})

	ok, err := s.Exists(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(context.Background(), "b")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, s.Delete(context.Background(), "b"))
}

func TestStore_ListPaginates(t *testing.T) {
	m := new(MockS3Client)
	s := NewStore(m, "bucket", WithPrefix("world"))

	m.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil
	})).Return(&s3.ListObjectsV2Output{
		Contents:              []types.Object{{Key: aws.String("world/pv.1.ttp.lz4b")}, {Key: aws.String("world/sub/x")}},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("next"),
	}, nil).Once()
	m.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.ContinuationToken) == "next"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{{Key: aws.String("world/p.2.ttp.lz4b")}},
	}, nil).Once()

	names, err := s.List(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"pv.1.ttp.lz4b", "p.2.ttp.lz4b"}, names)
	m.AssertExpectations(t)
}

func TestStore_Integration(t *testing.T) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		t.Skip("S3_BUCKET not set")
	}
	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx)
	require.NoError(t, err)

	s := NewStore(s3.NewFromConfig(cfg), bucket, WithPrefix("gridstore-test"))
	require.NoError(t, s.Put(ctx, "pv.0.ttp.lz4b", []byte("payload")))
	got, err := s.Get(ctx, "pv.0.ttp.lz4b")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
	require.NoError(t, s.Delete(ctx, "pv.0.ttp.lz4b"))
}
