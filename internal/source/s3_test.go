package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3Client struct {
	data          []byte
	contentLength *int64
	getErr        error
	ranges        []string
}

func (m *mockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return &s3.HeadObjectOutput{ContentLength: m.contentLength}, nil
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	rng := aws.ToString(params.Range)
	m.ranges = append(m.ranges, rng)
	var start, end int64
	if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil {
		return nil, err
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(m.data[start : end+1])),
	}, nil
}

func TestS3SourceSize(t *testing.T) {
	client := &mockS3Client{contentLength: aws.Int64(2048)}
	src := newS3SourceWithClient(client, "bucket", "releases/app", nil)

	size, err := src.Size(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2048), size)
	assert.Equal(t, "s3://bucket/releases/app", src.String())
}

func TestS3SourceSizeInvalid(t *testing.T) {
	for _, length := range []*int64{nil, aws.Int64(-1)} {
		src := newS3SourceWithClient(&mockS3Client{contentLength: length}, "b", "k", nil)
		_, err := src.Size(context.Background())
		assert.ErrorIs(t, err, ErrInvalidSize)
	}
}

func TestS3SourceFetchRange(t *testing.T) {
	data := []byte("0123456789abcdef")
	client := &mockS3Client{data: data}
	src := newS3SourceWithClient(client, "b", "k", nil)

	payload, err := src.FetchRange(context.Background(), 4, 9)
	require.NoError(t, err)
	assert.Equal(t, []byte("456789"), payload)
	assert.Equal(t, []string{"bytes=4-9"}, client.ranges)
}

func TestS3SourceFetchRangeError(t *testing.T) {
	client := &mockS3Client{getErr: errors.New("throttled")}
	src := newS3SourceWithClient(client, "b", "k", nil)

	_, err := src.FetchRange(context.Background(), 0, 1)
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.EqualError(t, fetchErr.Err, "throttled")
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		raw     string
		bucket  string
		key     string
		wantErr bool
	}{
		{raw: "s3://bucket/app.bin", bucket: "bucket", key: "app.bin"},
		{raw: "s3://bucket/nested/path/app", bucket: "bucket", key: "nested/path/app"},
		{raw: "s3://bucket", wantErr: true},
		{raw: "s3://bucket/folder/", wantErr: true},
		{raw: "s3:///key", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			bucket, key, err := parseS3URL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}
